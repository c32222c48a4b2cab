package tiingo

import (
	"github.com/openfolio/backend/pkg/config"
	"github.com/openfolio/backend/pkg/httputil"
	"github.com/openfolio/backend/pkg/logger"
)

// ProviderName identifies this client in coverage records
const ProviderName = "tiingo"

// Client calls the Tiingo end-of-day price API
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	apiKey     string
}

// NewClient creates a Tiingo API client
func NewClient(cfg *config.Config, httpClient *httputil.Client, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log,
		baseURL:    cfg.Tiingo.BaseURL,
		apiKey:     cfg.Tiingo.APIKey,
	}
}

// Name returns the provider identifier
func (c *Client) Name() string {
	return ProviderName
}
