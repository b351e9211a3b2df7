package shopify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/scentstock/scentstock/internal/products"
)

// ErrNotConfigured is returned when Admin API credentials are missing.
var ErrNotConfigured = errors.New("shopify: credentials not configured")

const (
	defaultAPIVersion = "2024-01"
	defaultVendor     = "Scent Australia"
	productType       = "Fragrance Oil"
)

// ClientConfig holds Admin API settings.
type ClientConfig struct {
	StoreName   string
	APIKey      string
	APIPassword string
	APIVersion  string
	// BaseURL overrides https://{store}.myshopify.com, mainly for tests.
	BaseURL string
	Timeout time.Duration
}

// Client talks to the Shopify Admin REST API.
type Client struct {
	http       *resty.Client
	configured bool
}

type variantDetail struct {
	title  string
	price  string
	weight int
}

var variantDetails = map[products.SKUType]variantDetail{
	products.SKUCartridge:   {title: "400ml Cartridge", price: "50.00", weight: 400},
	products.SKUHalfLitre:   {title: "500ml Half Liter", price: "60.00", weight: 500},
	products.SKUCarDiffuser: {title: "700ml Car Diffuser", price: "80.00", weight: 700},
	products.SKUOneLitre:    {title: "1L Bottle", price: "100.00", weight: 1000},
	products.SKUPro:         {title: "1L Pro Bottle", price: "120.00", weight: 1000},
}

// NewClient builds a resty-backed Admin API client.
func NewClient(cfg ClientConfig) *Client {
	version := cfg.APIVersion
	if version == "" {
		version = defaultAPIVersion
	}
	base := strings.TrimSuffix(cfg.BaseURL, "/")
	if base == "" {
		base = fmt.Sprintf("https://%s.myshopify.com", cfg.StoreName)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	restyClient := resty.New().
		SetBaseURL(fmt.Sprintf("%s/admin/api/%s", base, version)).
		SetBasicAuth(cfg.APIKey, cfg.APIPassword).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)
	return &Client{
		http:       restyClient,
		configured: (cfg.StoreName != "" || cfg.BaseURL != "") && cfg.APIKey != "" && cfg.APIPassword != "",
	}
}

// ProductVariant mirrors the Admin API variant payload.
type ProductVariant struct {
	ID                  int64   `json:"id,omitempty"`
	Option1             string  `json:"option1"`
	SKU                 string  `json:"sku"`
	Price               string  `json:"price"`
	Weight              int     `json:"weight"`
	WeightUnit          string  `json:"weight_unit"`
	InventoryManagement *string `json:"inventory_management"`
	InventoryPolicy     string  `json:"inventory_policy"`
}

type productOption struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// ProductPayload mirrors the Admin API product payload.
type ProductPayload struct {
	ID          int64            `json:"id,omitempty"`
	Title       string           `json:"title"`
	BodyHTML    string           `json:"body_html,omitempty"`
	Vendor      string           `json:"vendor"`
	ProductType string           `json:"product_type"`
	Tags        string           `json:"tags,omitempty"`
	Options     []productOption  `json:"options,omitempty"`
	Variants    []ProductVariant `json:"variants"`
}

type productEnvelope struct {
	Product ProductPayload `json:"product"`
}

type apiError struct {
	Errors any `json:"errors"`
}

// BuildProductPayload maps a local product to a Shopify listing with one
// variant per known SKU type. Stock is tracked locally so Shopify inventory
// management is disabled.
func BuildProductPayload(p products.Product) ProductPayload {
	payload := ProductPayload{
		Title:       p.Name,
		BodyHTML:    fmt.Sprintf("<p>%s</p><p>Product Code: %s</p>", p.Name, p.ProductCode),
		Vendor:      p.Supplier,
		ProductType: productType,
		Variants:    []ProductVariant{},
	}
	if payload.Vendor == "" {
		payload.Vendor = defaultVendor
	}
	var tags []string
	for _, t := range []string{string(p.Category), p.Tag} {
		if t != "" {
			tags = append(tags, t)
		}
	}
	payload.Tags = strings.Join(tags, ", ")

	option := productOption{Name: "Size"}
	for _, t := range p.ShopifySKUs.Types() {
		detail, ok := variantDetails[t]
		if !ok {
			continue
		}
		payload.Variants = append(payload.Variants, ProductVariant{
			Option1:         detail.title,
			SKU:             p.ShopifySKUs[t],
			Price:           detail.price,
			Weight:          detail.weight,
			WeightUnit:      "g",
			InventoryPolicy: "continue",
		})
		option.Values = append(option.Values, detail.title)
	}
	payload.Options = []productOption{option}
	return payload
}

// CreateProduct creates the listing for p and returns Shopify's copy.
func (c *Client) CreateProduct(ctx context.Context, p products.Product) (ProductPayload, error) {
	if c == nil || !c.configured {
		return ProductPayload{}, ErrNotConfigured
	}
	payload := BuildProductPayload(p)
	if len(payload.Variants) == 0 {
		return ProductPayload{}, fmt.Errorf("shopify: product %s has no sellable SKUs", p.ID)
	}

	result := new(productEnvelope)
	apiErr := new(apiError)
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(productEnvelope{Product: payload}).
		SetResult(result).
		SetError(apiErr).
		Post("/products.json")
	if err != nil {
		return ProductPayload{}, fmt.Errorf("shopify create product: %w", err)
	}
	if resp.StatusCode() >= http.StatusBadRequest {
		return ProductPayload{}, fmt.Errorf("shopify api error: status=%d, errors=%v", resp.StatusCode(), apiErr.Errors)
	}
	return result.Product, nil
}
