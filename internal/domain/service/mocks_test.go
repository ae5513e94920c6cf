package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/WRLC/alma-item-checks-webhook-service/internal/domain"
	"github.com/WRLC/alma-item-checks-webhook-service/internal/domain/entity"
	"github.com/WRLC/alma-item-checks-webhook-service/internal/domain/retry"
)

// mockDirectory implements secondary.InstitutionDirectory for testing.
type mockDirectory struct {
	institutions map[string]*entity.Institution
	err          error
	calls        int
}

func (m *mockDirectory) Lookup(_ context.Context, code string) (*entity.Institution, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	inst, ok := m.institutions[code]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrInstitutionNotFound, code)
	}
	return inst, nil
}

// mockSender implements secondary.QueueSender for testing.
type mockSender struct {
	mu      sync.Mutex
	sendErr error
	sent    []sentMessage
}

type sentMessage struct {
	Queue string
	Body  []byte
}

func (m *mockSender) Send(_ context.Context, queue string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, sentMessage{Queue: queue, Body: append([]byte(nil), body...)})
	return nil
}

func (m *mockSender) Close() error { return nil }

func (m *mockSender) decode(t *testing.T, i int, v any) {
	t.Helper()
	if err := json.Unmarshal(m.sent[i].Body, v); err != nil {
		t.Fatalf("decoding sent message %d: %v", i, err)
	}
}

// mockCatalog implements secondary.CatalogClient. Each call consumes the
// next scripted result; the last one repeats.
type mockCatalog struct {
	results []catalogResult
	calls   int
	keys    []string
}

type catalogResult struct {
	item json.RawMessage
	err  error
}

func (m *mockCatalog) GetItemByBarcode(_ context.Context, apiKey, _ string) (json.RawMessage, error) {
	m.keys = append(m.keys, apiKey)
	i := m.calls
	if i >= len(m.results) {
		i = len(m.results) - 1
	}
	m.calls++
	return m.results[i].item, m.results[i].err
}

// mockBlobStore implements secondary.BlobStore for testing.
type mockBlobStore struct {
	uploadErr error
	uploads   int
	blobs     map[string][]byte
}

func (m *mockBlobStore) Upload(_ context.Context, container, name string, data []byte) error {
	m.uploads++
	if m.uploadErr != nil {
		return m.uploadErr
	}
	if m.blobs == nil {
		m.blobs = make(map[string][]byte)
	}
	m.blobs[container+"/"+name] = append([]byte(nil), data...)
	return nil
}

// sleepCounter records retry waits without sleeping.
type sleepCounter struct {
	waits []time.Duration
}

func (s *sleepCounter) policy() retry.Policy {
	p := retry.Default()
	p.Sleep = func(d time.Duration) { s.waits = append(s.waits, d) }
	return p
}

// testInstitution returns a standard institution fixture.
func testInstitution() *entity.Institution {
	return &entity.Institution{ID: 1, Name: "Test University", Code: "TU", APIKey: "tu-api-key"}
}

func testDirectory() *mockDirectory {
	return &mockDirectory{institutions: map[string]*entity.Institution{"TU": testInstitution()}}
}

func transientErr() error {
	return domain.E(domain.KindTransient, "catalog.GetItemByBarcode", fmt.Errorf("dial tcp: connection refused"))
}

func terminalErr() error {
	return domain.E(domain.KindTerminal, "catalog.GetItemByBarcode",
		fmt.Errorf("%w: No items found for barcode 12345.", domain.ErrItemNotFound))
}
