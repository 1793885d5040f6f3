package invoicing

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/distrimax/fulfillgo/internal/models"
	"github.com/kolo/xmlrpc"
)

// Client talks XML-RPC to the external invoicing/accounting service,
// the system of record for what was actually sold.
type Client struct {
	URL        string
	Database   string
	Username   string
	Password   string
	Uid        int
	CommonURL  string
	ObjectURL  string
	HttpClient *http.Client
}

// NewClient creates a new invoicing client
func NewClient(url, db, username, password string) *Client {
	return &Client{
		URL:        url,
		Database:   db,
		Username:   username,
		Password:   password,
		CommonURL:  fmt.Sprintf("%s/xmlrpc/2/common", url),
		ObjectURL:  fmt.Sprintf("%s/xmlrpc/2/object", url),
		HttpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Authenticate authenticates with the invoicing service and returns the user ID
func (c *Client) Authenticate() (int, error) {
	client, err := xmlrpc.NewClient(c.CommonURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create XML-RPC client: %w", err)
	}
	defer client.Close()

	args := []interface{}{c.Database, c.Username, c.Password, make([]interface{}, 0)}
	var uid int
	if err := client.Call("authenticate", args, &uid); err != nil {
		return 0, fmt.Errorf("authentication failed: %w", err)
	}

	c.Uid = uid
	return uid, nil
}

// SearchRead performs a generic search_read operation.
// model: backend model name (e.g., "account.move.line")
// domain: search criteria
// fields: fields to fetch
// result: pointer to slice of structs with xmlrpc tags
func (c *Client) SearchRead(model string, domain []interface{}, fields []string, limit, offset int, result interface{}) error {
	client, err := xmlrpc.NewClient(c.ObjectURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create XML-RPC client: %w", err)
	}
	defer client.Close()

	args := []interface{}{
		c.Database,
		c.Uid,
		c.Password,
		model,
		"search_read",
		[]interface{}{domain},
		map[string]interface{}{
			"fields": fields,
			"limit":  limit,
			"offset": offset,
		},
	}

	// First, get raw result
	var rawResult []map[string]interface{}
	if err := client.Call("execute_kw", args, &rawResult); err != nil {
		return fmt.Errorf("failed to execute search_read: %w", err)
	}

	// Convert raw maps to target struct via JSON round-trip
	jsonData, err := json.Marshal(rawResult)
	if err != nil {
		return fmt.Errorf("failed to marshal raw result: %w", err)
	}

	if err := json.Unmarshal(jsonData, result); err != nil {
		return fmt.Errorf("failed to unmarshal into target: %w", err)
	}

	return nil
}

// Read reads records by IDs
func (c *Client) Read(model string, ids []int64, fields []string, result interface{}) error {
	client, err := xmlrpc.NewClient(c.ObjectURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create XML-RPC client: %w", err)
	}
	defer client.Close()

	args := []interface{}{
		c.Database,
		c.Uid,
		c.Password,
		model,
		"read",
		[]interface{}{ids},
		map[string]interface{}{
			"fields": fields,
		},
	}

	var rawResult []map[string]interface{}
	if err := client.Call("execute_kw", args, &rawResult); err != nil {
		return fmt.Errorf("failed to execute read: %w", err)
	}

	jsonData, err := json.Marshal(rawResult)
	if err != nil {
		return fmt.Errorf("failed to marshal raw result: %w", err)
	}

	if err := json.Unmarshal(jsonData, result); err != nil {
		return fmt.Errorf("failed to unmarshal into target: %w", err)
	}

	return nil
}

// InvoiceLine mirrors one sold line on the accounting side
type InvoiceLine struct {
	ID          int64             `json:"id" xmlrpc:"id"`
	InvoiceID   int64             `json:"move_id" xmlrpc:"move_id"`
	ProductCode models.FlexString `json:"product_default_code" xmlrpc:"product_default_code"`
	Name        string            `json:"name" xmlrpc:"name"`
	Quantity    float64           `json:"quantity" xmlrpc:"quantity"`
	PriceUnit   float64           `json:"price_unit" xmlrpc:"price_unit"`
}

// FetchInvoiceLines returns the current sold lines of an invoice
func (c *Client) FetchInvoiceLines(invoiceID int64) ([]InvoiceLine, error) {
	domain := []interface{}{
		[]interface{}{"move_id", "=", invoiceID},
		[]interface{}{"display_type", "=", "product"},
	}

	var lines []InvoiceLine
	err := c.SearchRead("account.move.line", domain, []string{
		"move_id", "name", "quantity", "price_unit", "product_default_code",
	}, 500, 0, &lines)
	if err != nil {
		return nil, err
	}
	return lines, nil
}
