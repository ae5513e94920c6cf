package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/WRLC/alma-item-checks-webhook-service/internal/domain"
	"github.com/WRLC/alma-item-checks-webhook-service/internal/domain/entity"
	"github.com/WRLC/alma-item-checks-webhook-service/internal/domain/signature"
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a signed item-updated webhook to a running service",
	RunE:  runSend,
}

func init() {
	sendCmd.Flags().String("url", "http://localhost:8080/scfwebhook", "Webhook endpoint")
	sendCmd.Flags().String("institution", "", "Institution code for the institution query parameter")
	_ = sendCmd.MarkFlagRequired("institution")
	sendCmd.Flags().String("barcode", "", "Item barcode")
	_ = sendCmd.MarkFlagRequired("barcode")
	sendCmd.Flags().String("secret", "", "Shared webhook secret (defaults to $WEBHOOK_SECRET)")
	sendCmd.Flags().Bool("nested", false, "Put the barcode under item.item_data like the catalog's native payload")
	sendCmd.Flags().Duration("timeout", 10*time.Second, "Request timeout")
}

// itemWebhook builds a catalog-shaped item update event.
func itemWebhook(institution, barcode string, nested bool) *entity.WebhookEvent {
	ev := &entity.WebhookEvent{
		ID:          uuid.NewString(),
		Action:      "ITEM",
		Event:       &entity.ValueDesc{Value: "ITEM_UPDATED", Desc: "Item updated"},
		Institution: &entity.ValueDesc{Value: institution},
	}
	data := &entity.ItemData{Barcode: entity.Barcode(barcode)}
	if nested {
		ev.Item = &entity.WebhookItem{ItemData: data}
	} else {
		ev.ItemData = data
	}
	return ev
}

func runSend(cmd *cobra.Command, _ []string) error {
	endpoint, _ := cmd.Flags().GetString("url")
	institution, _ := cmd.Flags().GetString("institution")
	barcode, _ := cmd.Flags().GetString("barcode")
	nested, _ := cmd.Flags().GetBool("nested")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	secret := flagOrEnv(cmd, "secret", "WEBHOOK_SECRET")

	body, err := json.Marshal(itemWebhook(institution, barcode, nested))
	if err != nil {
		return err
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("parsing url: %w", err)
	}
	q := u.Query()
	q.Set("institution", institution)
	u.RawQuery = q.Encode()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set(domain.SignatureHeader, signature.Sign(body, secret))
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending webhook: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	fmt.Fprintf(cmd.OutOrStdout(), "%d %s\n", resp.StatusCode, bytes.TrimSpace(respBody))

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook rejected with status %d", resp.StatusCode)
	}
	return nil
}
