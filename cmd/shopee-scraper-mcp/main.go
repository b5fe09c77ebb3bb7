package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// clientTimeout covers navigation, the captcha wait and the settle delays.
const clientTimeout = 6 * time.Minute

// scrapeRequest mirrors the scraper API request model.
type scrapeRequest struct {
	URL string `json:"url"`
}

// scrapeResponse mirrors the scraper API response model.
type scrapeResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    *struct {
		Title       *string  `json:"title"`
		Price       *string  `json:"price"`
		Description *string  `json:"description"`
		ImageURLs   []string `json:"image_urls"`
		Seller      *string  `json:"seller"`
		URL         *string  `json:"url"`
		Missing     []string `json:"missing"`
	} `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func main() {
	apiURL := strings.TrimRight(os.Getenv("SCRAPER_API_URL"), "/")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8000"
	}
	apiKey := os.Getenv("SCRAPER_API_KEY")

	s := server.NewMCPServer(
		"shopee-scraper",
		"0.1.0",
		server.WithToolCapabilities(false),
	)

	scrapeTool := mcp.NewTool("scrape_product",
		mcp.WithDescription("Scrape a Shopee product page and return its title, price, description, images and seller. Drives a real browser and may wait several minutes when a captcha appears."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The Shopee product page URL, e.g. https://shopee.tw/Product-i.123.456"),
		),
	)

	s.AddTool(scrapeTool, handleScrapeProduct(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func handleScrapeProduct(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: clientTimeout}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		body, err := json.Marshal(scrapeRequest{URL: url})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal request: %v", err)), nil
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+"/api/v1/scrape", bytes.NewReader(body))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to create request: %v", err)), nil
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if apiKey != "" {
			httpReq.Header.Set("X-API-Key", apiKey)
		}

		resp, err := client.Do(httpReq)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("API request failed: %v", err)), nil
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to read response: %v", err)), nil
		}

		var scrapeResp scrapeResponse
		if err := json.Unmarshal(respBody, &scrapeResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response (HTTP %d): %v", resp.StatusCode, err)), nil
		}

		if !scrapeResp.Success || scrapeResp.Data == nil {
			errMsg := scrapeResp.Message
			if scrapeResp.Error != nil {
				errMsg = fmt.Sprintf("[%s] %s", scrapeResp.Error.Code, scrapeResp.Message)
			}
			if errMsg == "" {
				errMsg = fmt.Sprintf("scrape failed with HTTP %d", resp.StatusCode)
			}
			return mcp.NewToolResultError(errMsg), nil
		}

		d := scrapeResp.Data
		var b strings.Builder
		writeField(&b, "Title", d.Title)
		writeField(&b, "Price", d.Price)
		writeField(&b, "Seller", d.Seller)
		writeField(&b, "URL", d.URL)
		if len(d.ImageURLs) > 0 {
			b.WriteString("Images:\n")
			for _, u := range d.ImageURLs {
				fmt.Fprintf(&b, "  - %s\n", u)
			}
		}
		if d.Description != nil {
			fmt.Fprintf(&b, "\n%s\n", *d.Description)
		}
		if len(d.Missing) > 0 {
			fmt.Fprintf(&b, "\n---\nNot found on page: %s", strings.Join(d.Missing, ", "))
		}

		return mcp.NewToolResultText(b.String()), nil
	}
}

func writeField(b *strings.Builder, label string, v *string) {
	if v != nil {
		fmt.Fprintf(b, "%s: %s\n", label, *v)
	}
}
