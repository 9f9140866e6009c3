package ontology

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// maxResults 远程检索最多消费前十条结果
const maxResults = 10

// QueryFields 远程检索的查询字段选项
type QueryFields string

const (
	QueryLabel   QueryFields = "label"
	QuerySynonym QueryFields = "synonym"
	QueryBoth    QueryFields = "label,synonym"
)

// SearchOptions 远程检索的字段级选项
type SearchOptions struct {
	Exact       bool
	QueryFields QueryFields
}

// Result 远程查找服务返回的候选术语
type Result struct {
	IRI          string `json:"iri"`
	Label        string `json:"label"`
	OntologyName string `json:"ontology_name"`
	Description  any    `json:"description"`
}

type olsResponse struct {
	Response struct {
		Docs []Result `json:"docs"`
	} `json:"response"`
}

// OLSClient Ontology Lookup Service 客户端
type OLSClient struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewOLSClient 创建 OLS 客户端
func NewOLSClient(baseURL string, logger *zap.Logger) *OLSClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Accept", "application/json")

	return &OLSClient{
		httpClient: client,
		logger:     logger,
	}
}

// Search 按关键词检索候选术语，有序返回，上限十条
func (c *OLSClient) Search(ctx context.Context, query string, opts SearchOptions) ([]Result, error) {
	if opts.QueryFields == "" {
		opts.QueryFields = QueryBoth
	}

	params := map[string]string{
		"q":           query,
		"queryFields": string(opts.QueryFields),
		"fieldList":   "iri,label,ontology_name,description",
	}
	if opts.Exact {
		params["exact"] = "true"
	}

	var body olsResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(&body).
		Get("/search")
	if err != nil {
		return nil, fmt.Errorf("ols search request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("ols search returned status %d", resp.StatusCode())
	}

	docs := body.Response.Docs
	if len(docs) > maxResults {
		docs = docs[:maxResults]
	}

	c.logger.Debug("OLS search finished",
		zap.String("query", query),
		zap.Int("results", len(docs)),
	)
	return docs, nil
}
