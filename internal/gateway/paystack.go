package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"eventcircle/internal/money"
)

const DefaultPaystackURL = "https://api.paystack.co"

// PaystackClient implements Client and Payouts over the Paystack REST API.
type PaystackClient struct {
	baseURL   string
	secretKey string
	http      *http.Client
}

func NewPaystackClient(secretKey, baseURL string, httpClient *http.Client) *PaystackClient {
	if baseURL == "" {
		baseURL = DefaultPaystackURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &PaystackClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		http:      httpClient,
	}
}

type paystackEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (p *PaystackClient) InitializeTransaction(ctx context.Context, req InitRequest) (*InitResult, error) {
	body := map[string]any{
		"email":        req.Email,
		"amount":       req.Amount.Minor(),
		"currency":     req.Currency,
		"callback_url": req.CallbackURL,
	}
	if len(req.Metadata) > 0 {
		// Paystack wants metadata as a JSON string.
		meta, err := json.Marshal(req.Metadata)
		if err != nil {
			return nil, &Error{Op: "initialize", Err: err}
		}
		body["metadata"] = string(meta)
	}

	var data struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	}
	if err := p.do(ctx, "initialize", http.MethodPost, "/transaction/initialize", body, &data); err != nil {
		return nil, err
	}
	if data.AuthorizationURL == "" || data.Reference == "" {
		return nil, &Error{Op: "initialize", StatusCode: http.StatusOK, Message: "response missing authorization_url or reference"}
	}
	return &InitResult{AuthorizationURL: data.AuthorizationURL, Reference: data.Reference}, nil
}

func (p *PaystackClient) VerifyTransaction(ctx context.Context, reference string) (*Verification, error) {
	var data struct {
		Status    string          `json:"status"`
		Reference string          `json:"reference"`
		Amount    int64           `json:"amount"`
		Currency  string          `json:"currency"`
		Metadata  json.RawMessage `json:"metadata"`
	}
	path := "/transaction/verify/" + url.PathEscape(reference)
	if err := p.do(ctx, "verify", http.MethodGet, path, nil, &data); err != nil {
		return nil, err
	}

	return &Verification{
		Reference: data.Reference,
		Status:    strings.ToLower(data.Status),
		Amount:    money.FromMinor(data.Amount),
		Currency:  strings.ToUpper(data.Currency),
		Metadata:  decodePaystackMetadata(data.Metadata),
	}, nil
}

func (p *PaystackClient) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	body := map[string]any{
		"source":    "balance",
		"amount":    req.Amount.Minor(),
		"currency":  req.Currency,
		"recipient": req.Recipient,
		"reference": req.Reference,
		"reason":    req.Reason,
	}
	var data struct {
		Status       string `json:"status"`
		TransferCode string `json:"transfer_code"`
	}
	if err := p.do(ctx, "transfer", http.MethodPost, "/transfer", body, &data); err != nil {
		return nil, err
	}
	if data.Status != StatusSuccess {
		return nil, &Error{Op: "transfer", StatusCode: http.StatusOK, Message: "transfer status " + data.Status, Err: ErrTransferRejected}
	}
	return &TransferResult{TransferCode: data.TransferCode, Status: data.Status}, nil
}

func (p *PaystackClient) do(ctx context.Context, op, method, path string, in, out any) error {
	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return &Error{Op: op, Err: err}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return &Error{Op: op, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+p.secretKey)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return &Error{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &Error{Op: op, StatusCode: resp.StatusCode, Err: err}
	}

	var env paystackEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return &Error{Op: op, StatusCode: resp.StatusCode, Message: "malformed response", Err: err}
	}
	if resp.StatusCode >= 300 || !env.Status {
		return &Error{Op: op, StatusCode: resp.StatusCode, Message: env.Message}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return &Error{Op: op, StatusCode: resp.StatusCode, Message: "malformed data", Err: err}
		}
	}
	return nil
}

// decodePaystackMetadata handles metadata echoed back either as an object or
// as the JSON string we sent.
func decodePaystackMetadata(raw json.RawMessage) map[string]string {
	if len(raw) == 0 || string(raw) == "null" || string(raw) == `""` {
		return nil
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		raw = json.RawMessage(asString)
	}
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil
	}
	out := make(map[string]string, len(generic))
	for k, v := range generic {
		if s, ok := v.(string); ok {
			out[k] = s
		} else {
			out[k] = fmt.Sprint(v)
		}
	}
	return out
}
