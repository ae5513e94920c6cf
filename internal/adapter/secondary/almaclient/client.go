package almaclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/WRLC/alma-item-checks-webhook-service/internal/domain"
	"github.com/WRLC/alma-item-checks-webhook-service/internal/port/secondary"
)

// Regional API gateways.
var regionBaseURLs = map[string]string{
	"NA":   "https://api-na.hosted.exlibrisgroup.com",
	"EU":   "https://api-eu.hosted.exlibrisgroup.com",
	"APAC": "https://api-ap.hosted.exlibrisgroup.com",
	"CA":   "https://api-ca.hosted.exlibrisgroup.com",
	"CN":   "https://api-cn.hosted.exlibrisgroup.com.cn",
}

// errCodeNoItem is returned by the items API for an unknown barcode.
const errCodeNoItem = "401689"

const maxErrorBody = 64 << 10

// BaseURL returns the gateway for region.
func BaseURL(region string) (string, error) {
	u, ok := regionBaseURLs[strings.ToUpper(strings.TrimSpace(region))]
	if !ok {
		return "", fmt.Errorf("unknown catalog region %q", region)
	}
	return u, nil
}

// Client implements secondary.CatalogClient over the catalog REST API.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

var _ secondary.CatalogClient = (*Client)(nil)

// NewClient creates a catalog client. baseURL overrides the region gateway
// when set.
func NewClient(region, baseURL string, timeout time.Duration, logger *zap.Logger) (*Client, error) {
	if baseURL == "" {
		var err error
		if baseURL, err = BaseURL(region); err != nil {
			return nil, err
		}
	}

	client := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	logger.Info("catalog client initialized",
		zap.String("base_url", baseURL),
		zap.Duration("timeout", timeout),
	)

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		logger:  logger.Named("catalog-client"),
	}, nil
}

type apiError struct {
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
	TrackingID   string `json:"trackingId"`
}

type errorEnvelope struct {
	ErrorsExist bool `json:"errorsExist"`
	ErrorList   struct {
		Error []apiError `json:"error"`
	} `json:"errorList"`
}

// GetItemByBarcode fetches the item record for barcode. An empty or null
// response body means the catalog has no active item and yields (nil, nil).
func (c *Client) GetItemByBarcode(ctx context.Context, apiKey, barcode string) (json.RawMessage, error) {
	const op = "catalog.GetItemByBarcode"

	endpoint := c.baseURL + "/almaws/v1/items?item_barcode=" + url.QueryEscape(barcode)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, domain.E(domain.KindTerminal, op, fmt.Errorf("creating http request: %w", err))
	}
	req.Header.Set("Authorization", "apikey "+apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "alma-item-checks-webhook-service/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, domain.E(domain.KindTransient, op, fmt.Errorf("executing http request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.E(domain.KindTransient, op, fmt.Errorf("reading response body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := parseError(resp.StatusCode, body)
		if IsStatus(apiErr, http.StatusUnauthorized) || IsStatus(apiErr, http.StatusForbidden) {
			c.logger.Warn("catalog rejected the institution api key",
				zap.Int("status_code", resp.StatusCode),
				zap.Error(apiErr),
			)
		}
		return nil, domain.E(domain.KindTerminal, op, apiErr)
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, trimmed); err != nil {
		return nil, domain.E(domain.KindTerminal, op, fmt.Errorf("decoding item response: %w", err))
	}

	c.logger.Debug("item retrieved",
		zap.String("barcode", barcode),
		zap.Int("status_code", resp.StatusCode),
		zap.Int("size", compact.Len()),
	)

	return compact.Bytes(), nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// StatusError is an API-level failure.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
	TrackingID string
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("catalog api status %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("catalog api status %d: %s", e.StatusCode, e.Message)
}

// Unwrap maps the unknown-barcode error code to domain.ErrItemNotFound.
func (e *StatusError) Unwrap() error {
	if e.Code == errCodeNoItem {
		return domain.ErrItemNotFound
	}
	return nil
}

func parseError(status int, body []byte) error {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}

	se := &StatusError{StatusCode: status}

	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil && len(env.ErrorList.Error) > 0 {
		first := env.ErrorList.Error[0]
		se.Code = first.ErrorCode
		se.Message = first.ErrorMessage
		se.TrackingID = first.TrackingID
		return se
	}

	se.Message = strings.TrimSpace(string(body))
	if se.Message == "" {
		se.Message = http.StatusText(status)
	}
	return se
}

// IsStatus reports whether err carries an API status error with code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}
