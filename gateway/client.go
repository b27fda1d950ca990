// Package gateway is the outbound client for the remote payment engine. It
// speaks the engine's flat NVP format: form-encoded POST, signed with the
// same scheme the engine uses for pushes. Retry/backoff is deliberately not
// implemented here.
package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"recon-svc/models"
	"recon-svc/signature"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Client struct {
	baseURL    string
	websiteKey string
	secret     string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(logger *zap.Logger) *Client {
	return &Client{
		baseURL:    getEnv("GATEWAY_URL", "https://checkout.example-gateway.test/nvp"),
		websiteKey: getEnv("GATEWAY_WEBSITE_KEY", ""),
		secret:     getEnv("GATEWAY_SECRET", ""),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// NewClientWithConfig is used by tests and multi-channel setups.
func NewClientWithConfig(baseURL, websiteKey, secret string, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		websiteKey: websiteKey,
		secret:     secret,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// TransactionRequest is one outbound refund/capture/pay call.
type TransactionRequest struct {
	ServiceName            string
	Action                 string // accounting.ActionRefund / ActionCapture / ActionPay
	Amount                 decimal.Decimal
	Currency               string
	Invoice                string
	OriginalTransactionKey string
	ReservationNumber      string
}

// Execute POSTs the request and decodes the engine's flat response into an
// EngineResponse. A transport or HTTP-level failure is a GatewayError; an
// explicit rejection (status 690) is a GatewayError with Rejected set.
func (c *Client) Execute(ctx context.Context, req TransactionRequest) (*models.EngineResponse, error) {
	isCredit := req.Action == "refund"

	fields := signature.Fields{
		{Key: "brq_websitekey", Value: c.websiteKey},
		{Key: "brq_payment_method", Value: req.ServiceName},
		{Key: fmt.Sprintf("brq_service_%s_action", strings.ToLower(req.ServiceName)), Value: req.Action},
		{Key: "brq_currency", Value: req.Currency},
		{Key: "brq_invoicenumber", Value: req.Invoice},
		{Key: "brq_originaltransaction", Value: req.OriginalTransactionKey},
	}
	if isCredit {
		fields = append(fields, signature.Field{Key: "brq_amount_credit", Value: req.Amount.StringFixed(2)})
	} else {
		fields = append(fields, signature.Field{Key: "brq_amount", Value: req.Amount.StringFixed(2)})
	}
	if req.ReservationNumber != "" {
		fields = append(fields, signature.Field{
			Key:   "brq_service_klarnakp_reservationnumber",
			Value: req.ReservationNumber,
		})
	}

	form := url.Values{}
	for _, field := range fields {
		form.Set(field.Key, field.Value)
	}
	form.Set("brq_signature", signature.ComputeSignature(fields, c.secret))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build gateway request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &models.GatewayError{Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &models.GatewayError{Message: err.Error(), Code: resp.StatusCode}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &models.GatewayError{Message: strings.TrimSpace(string(body)), Code: resp.StatusCode}
	}

	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, &models.GatewayError{Message: fmt.Sprintf("unparseable gateway response: %v", err)}
	}

	engineResp := models.ResponseFromFields(signature.FromValues(values).Map())
	c.logger.Info("Gateway transaction executed",
		zap.String("action", req.Action),
		zap.String("service", req.ServiceName),
		zap.String("transaction_key", engineResp.TransactionKey),
		zap.Int("status_code", int(engineResp.StatusCode)),
	)

	if engineResp.StatusCode == models.StatusRejected {
		return &engineResp, &models.GatewayError{
			Message:  statusMessage(values),
			Code:     int(engineResp.StatusCode),
			Rejected: true,
		}
	}
	if engineResp.StatusCode == models.StatusFailed || engineResp.StatusCode == models.StatusValidationFailure {
		return &engineResp, &models.GatewayError{
			Message: statusMessage(values),
			Code:    int(engineResp.StatusCode),
		}
	}
	return &engineResp, nil
}

func statusMessage(values url.Values) string {
	if msg := values.Get("brq_statusmessage"); msg != "" {
		return msg
	}
	return "transaction was not accepted by the gateway"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
