package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Venterweb3-wq/zodiak/internal/config"
	"github.com/Venterweb3-wq/zodiak/pkg/apperr"
)

// AddressGenerator 结算服务地址生成接口
// 区块链 worker 是外部协作方，这里只消费它的请求/响应契约；
// 私钥的生成与加密完全在 worker 侧完成，本服务拿到的只是不透明密文。
type AddressGenerator interface {
	GenerateAddress(ctx context.Context, network string) (*GeneratedWallet, error)
}

// GeneratedWallet worker 返回的新地址
type GeneratedWallet struct {
	Address             string `json:"address"`
	EncryptedPrivateKey string `json:"encryptedPrivateKey"`
	Network             string `json:"network"`
}

// Client 结算服务 HTTP 客户端
// 出站调用带固定超时；失败直接上抛 GatewayUnavailable，
// 重试/退避是调用方（或 worker 侧）的事，这里不做。
type Client struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
}

func NewClient(cfg *config.GatewayConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiToken:   cfg.APIToken,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// GenerateAddress 请求 worker 生成一个新的充值地址
func (c *Client) GenerateAddress(ctx context.Context, network string) (*GeneratedWallet, error) {
	body, err := json.Marshal(map[string]string{"network": network})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generate_wallet", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindGatewayUnavailable, "结算服务不可用", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperr.New(apperr.KindGatewayUnavailable,
			fmt.Sprintf("结算服务返回异常状态: %d", resp.StatusCode))
	}

	var wallet GeneratedWallet
	if err := json.NewDecoder(resp.Body).Decode(&wallet); err != nil {
		return nil, apperr.Wrap(apperr.KindGatewayUnavailable, "结算服务返回非法响应", err)
	}

	// 响应完整性与网络回显校验
	if wallet.Address == "" || wallet.EncryptedPrivateKey == "" || wallet.Network == "" {
		return nil, apperr.New(apperr.KindGatewayUnavailable, "结算服务返回不完整的钱包数据")
	}
	if wallet.Network != network {
		return nil, apperr.New(apperr.KindGatewayUnavailable,
			fmt.Sprintf("结算服务返回错误网络: 期望 %s，实际 %s", network, wallet.Network))
	}

	return &wallet, nil
}
