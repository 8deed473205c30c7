package steadfast

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/BearBump/CourierSync/internal/integrations/courier"
	"github.com/pkg/errors"
)

const defaultBaseURL = "https://portal.packzy.com/api/v1"

type Client struct {
	baseURL   string
	apiKey    string
	secretKey string
	httpc     *http.Client
}

func New(baseURL, apiKey, secretKey string, httpc *http.Client) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if httpc == nil {
		httpc = courier.NewHTTPClient(0)
	}
	return &Client{
		baseURL:   baseURL,
		apiKey:    apiKey,
		secretKey: secretKey,
		httpc:     httpc,
	}
}

func (c *Client) Code() string { return courier.CodeSteadfast }

type statusResp struct {
	Status         int    `json:"status"`
	DeliveryStatus string `json:"delivery_status"`
}

type createOrderBody struct {
	Invoice          string `json:"invoice"`
	RecipientName    string `json:"recipient_name"`
	RecipientPhone   string `json:"recipient_phone"`
	RecipientAddress string `json:"recipient_address"`
	CODAmount        string `json:"cod_amount"`
	Note             string `json:"note,omitempty"`
}

type createOrderResp struct {
	Status      int    `json:"status"`
	Message     string `json:"message"`
	Consignment struct {
		ConsignmentID json.Number `json:"consignment_id"`
		Invoice       string      `json:"invoice"`
		TrackingCode  string      `json:"tracking_code"`
		Status        string      `json:"status"`
	} `json:"consignment"`
}

// TrackOrder queries by tracking code. Steadfast returns only a status slug, without text or location.
func (c *Client) TrackOrder(ctx context.Context, trackingID string) (courier.TrackingReport, error) {
	var r statusResp
	path := "/status_by_trackingcode/" + url.PathEscape(trackingID)
	if err := c.call(ctx, http.MethodGet, path, nil, &r); err != nil {
		return courier.TrackingReport{}, err
	}
	if r.Status != 0 && r.Status != http.StatusOK {
		return courier.TrackingReport{}, fmt.Errorf("steadfast status=%d", r.Status)
	}
	return courier.TrackingReport{RawStatus: r.DeliveryStatus}, nil
}

func (c *Client) CreateOrder(ctx context.Context, req courier.CreateOrderRequest) (courier.Consignment, error) {
	rc := req.Recipient
	body := createOrderBody{
		Invoice:          req.MerchantOrderID,
		RecipientName:    rc.Name,
		RecipientPhone:   rc.Phone,
		RecipientAddress: rc.Address,
		CODAmount:        rc.AmountToCollect.StringFixed(2),
		Note:             rc.Note,
	}

	var r createOrderResp
	if err := c.call(ctx, http.MethodPost, "/create_order", body, &r); err != nil {
		return courier.Consignment{}, err
	}
	if r.Status != http.StatusOK {
		return courier.Consignment{}, fmt.Errorf("steadfast status=%d: %s", r.Status, r.Message)
	}
	if r.Consignment.TrackingCode == "" {
		return courier.Consignment{}, errors.New("steadfast: empty tracking_code")
	}
	return courier.Consignment{
		ConsignmentID: r.Consignment.ConsignmentID.String(),
		TrackingID:    r.Consignment.TrackingCode,
		RawStatus:     r.Consignment.Status,
	}, nil
}

func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	var payload []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "marshal body")
		}
		payload = b
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "new request")
	}
	req.Header.Set("Api-Key", c.apiKey)
	req.Header.Set("Secret-Key", c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return errors.New("steadfast http " + strconv.Itoa(resp.StatusCode))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode")
	}
	return nil
}
