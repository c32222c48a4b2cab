package stooq

import (
	"github.com/openfolio/backend/pkg/config"
	"github.com/openfolio/backend/pkg/httputil"
	"github.com/openfolio/backend/pkg/logger"
)

// ProviderName identifies this client in coverage records
const ProviderName = "stooq"

// Client downloads daily history CSVs from Stooq
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
}

// NewClient creates a Stooq client
func NewClient(cfg *config.Config, httpClient *httputil.Client, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log,
		baseURL:    cfg.Stooq.BaseURL,
	}
}

// Name returns the provider identifier
func (c *Client) Name() string {
	return ProviderName
}
