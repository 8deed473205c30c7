package pathao

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/BearBump/CourierSync/internal/integrations/courier"
	"github.com/pkg/errors"
)

const (
	defaultBaseURL = "https://api-hermes.pathao.com"

	deliveryTypeNormal = 48
	itemTypeParcel     = 2

	// Pathao отдаёт время без зоны, по Дакке.
	timeLayout = "2006-01-02 15:04:05"
)

var dhaka = time.FixedZone("BDT", 6*60*60)

type Credentials struct {
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	StoreID      int
}

type Client struct {
	baseURL string
	creds   Credentials
	httpc   *http.Client
	now     func() time.Time

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func New(baseURL string, creds Credentials, httpc *http.Client) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if httpc == nil {
		httpc = courier.NewHTTPClient(0)
	}
	return &Client{
		baseURL: baseURL,
		creds:   creds,
		httpc:   httpc,
		now:     time.Now,
	}
}

func (c *Client) Code() string { return courier.CodePathao }

type tokenResp struct {
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	AccessToken string `json:"access_token"`
}

type envelope struct {
	Message string          `json:"message"`
	Type    string          `json:"type"`
	Code    int             `json:"code"`
	Data    json.RawMessage `json:"data"`
}

type orderInfo struct {
	ConsignmentID   string `json:"consignment_id"`
	MerchantOrderID string `json:"merchant_order_id"`
	OrderStatus     string `json:"order_status"`
	OrderStatusSlug string `json:"order_status_slug"`
	UpdatedAt       string `json:"updated_at"`
}

type createOrderBody struct {
	StoreID            int     `json:"store_id"`
	MerchantOrderID    string  `json:"merchant_order_id"`
	RecipientName      string  `json:"recipient_name"`
	RecipientPhone     string  `json:"recipient_phone"`
	RecipientAddress   string  `json:"recipient_address"`
	RecipientCity      int     `json:"recipient_city,omitempty"`
	RecipientZone      int     `json:"recipient_zone,omitempty"`
	DeliveryType       int     `json:"delivery_type"`
	ItemType           int     `json:"item_type"`
	ItemQuantity       int     `json:"item_quantity"`
	ItemWeight         float64 `json:"item_weight"`
	AmountToCollect    int64   `json:"amount_to_collect"`
	SpecialInstruction string  `json:"special_instruction,omitempty"`
}

type createOrderData struct {
	ConsignmentID   string `json:"consignment_id"`
	MerchantOrderID string `json:"merchant_order_id"`
	OrderStatus     string `json:"order_status"`
}

func (c *Client) TrackOrder(ctx context.Context, trackingID string) (courier.TrackingReport, error) {
	var info orderInfo
	path := fmt.Sprintf("/aladdin/api/v1/orders/%s/info", url.PathEscape(trackingID))
	if err := c.call(ctx, http.MethodGet, path, nil, &info); err != nil {
		return courier.TrackingReport{}, err
	}

	raw := info.OrderStatusSlug
	if raw == "" {
		raw = info.OrderStatus
	}
	rep := courier.TrackingReport{
		RawStatus:     raw,
		RawStatusText: info.OrderStatus,
	}
	if info.UpdatedAt != "" {
		if t, err := time.ParseInLocation(timeLayout, info.UpdatedAt, dhaka); err == nil {
			ut := t.UTC()
			rep.UpdatedAt = &ut
		}
	}
	return rep, nil
}

func (c *Client) CreateOrder(ctx context.Context, req courier.CreateOrderRequest) (courier.Consignment, error) {
	r := req.Recipient
	qty := r.ItemQuantity
	if qty <= 0 {
		qty = 1
	}
	weight := r.ItemWeightKg
	if weight <= 0 {
		weight = 0.5
	}
	body := createOrderBody{
		StoreID:            c.creds.StoreID,
		MerchantOrderID:    req.MerchantOrderID,
		RecipientName:      r.Name,
		RecipientPhone:     r.Phone,
		RecipientAddress:   r.Address,
		RecipientCity:      r.CityID,
		RecipientZone:      r.ZoneID,
		DeliveryType:       deliveryTypeNormal,
		ItemType:           itemTypeParcel,
		ItemQuantity:       qty,
		ItemWeight:         weight,
		AmountToCollect:    r.AmountToCollect.Round(0).IntPart(),
		SpecialInstruction: r.Note,
	}

	var out createOrderData
	if err := c.call(ctx, http.MethodPost, "/aladdin/api/v1/orders", body, &out); err != nil {
		return courier.Consignment{}, err
	}
	if out.ConsignmentID == "" {
		return courier.Consignment{}, errors.New("pathao: empty consignment_id")
	}
	return courier.Consignment{
		ConsignmentID: out.ConsignmentID,
		TrackingID:    out.ConsignmentID,
		RawStatus:     out.OrderStatus,
	}, nil
}

func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	var body *bytes.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "marshal body")
		}
		body = bytes.NewReader(b)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return errors.Wrap(err, "new request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		// токен могли отозвать раньше expires_in
		c.resetToken()
		return fmt.Errorf("pathao http %d", resp.StatusCode)
	}
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("pathao http %d", resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return errors.Wrap(err, "decode")
	}
	if env.Type != "" && env.Type != "success" {
		return fmt.Errorf("pathao %s: %s", env.Type, env.Message)
	}
	if len(env.Data) == 0 {
		return errors.New("pathao: empty data")
	}
	return errors.Wrap(json.Unmarshal(env.Data, out), "decode data")
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	b, err := json.Marshal(map[string]string{
		"client_id":     c.creds.ClientID,
		"client_secret": c.creds.ClientSecret,
		"username":      c.creds.Username,
		"password":      c.creds.Password,
		"grant_type":    "password",
	})
	if err != nil {
		return "", errors.Wrap(err, "marshal token request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/aladdin/api/v1/issue-token", bytes.NewReader(b))
	if err != nil {
		return "", errors.Wrap(err, "new token request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "issue token")
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("pathao token http %d", resp.StatusCode)
	}

	var tr tokenResp
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", errors.Wrap(err, "decode token")
	}
	if tr.AccessToken == "" {
		return "", errors.New("pathao: empty access_token")
	}

	ttl := time.Duration(tr.ExpiresIn) * time.Second
	if ttl > time.Minute {
		ttl -= time.Minute
	}
	c.token = tr.AccessToken
	c.tokenExpiry = c.now().Add(ttl)
	return c.token, nil
}

func (c *Client) resetToken() {
	c.mu.Lock()
	c.token = ""
	c.tokenExpiry = time.Time{}
	c.mu.Unlock()
}
