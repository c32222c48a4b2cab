package marketwatch

import (
	"github.com/openfolio/backend/pkg/config"
	"github.com/openfolio/backend/pkg/httputil"
	"github.com/openfolio/backend/pkg/logger"
)

// ProviderName identifies this client in coverage records
const ProviderName = "marketwatch"

// Client scrapes historical quote tables from MarketWatch pages.
// Last-resort fallback; both API providers are preferred over scraping.
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
}

// NewClient creates a MarketWatch page client
func NewClient(cfg *config.Config, httpClient *httputil.Client, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log,
		baseURL:    cfg.MarketWatch.BaseURL,
	}
}

// Name returns the provider identifier
func (c *Client) Name() string {
	return ProviderName
}
