// Package security はアプリケーションのセキュリティ機能を提供する。
package security

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// MediaGuardService はメディアプロキシのURL検証インターフェース。
// プロキシ対象のURLは外部ストアが返したデータに由来するため、
// ホスト許可リストとSSRF防止の両方で検証する。
type MediaGuardService interface {
	// NewSafeClient はSSRF防止機能付きのHTTPクライアントを生成する。
	// safeurlライブラリにより、プライベートIP、ループバック、リンクローカル、
	// メタデータIPへのリクエストがDNS解決後のDialerレベルでブロックされる。
	NewSafeClient(timeout time.Duration) *http.Client

	// ValidateURL はプロキシ対象URLの安全性を事前に検証する。
	// スキーム、ホスト許可リスト、IPアドレスの検証を行う。
	ValidateURL(rawURL string) error
}

// allowedSchemes はメディアプロキシで許可されるURLスキーム。
var allowedSchemes = []string{"http", "https"}

// blockedNetworks はブロックされるネットワーク範囲。
// パッケージ初期化時に1回だけパースし、ValidateURLでの検証に使用する。
// safeurlはnet.DialerレベルでDNS解決後のIPアドレスも検証するため、
// DNS再バインディング攻撃にも対応している。
var blockedNetworks []net.IPNet

func init() {
	cidrs := []string{
		// プライベートIPアドレス (RFC 1918)
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		// ループバック (RFC 1122)
		"127.0.0.0/8",
		// リンクローカル (RFC 3927) - クラウドメタデータIP (169.254.169.254) を含む
		"169.254.0.0/16",
		// カレントネットワーク
		"0.0.0.0/8",
		// IPv6ループバック
		"::1/128",
		// IPv6リンクローカル
		"fe80::/10",
		// IPv6ユニークローカル
		"fc00::/7",
	}
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR in blockedNetworks: %s: %v", cidr, err))
		}
		blockedNetworks = append(blockedNetworks, *network)
	}
}

// mediaGuard はMediaGuardServiceの実装。
type mediaGuard struct {
	allowedHosts map[string]struct{}
}

// NewMediaGuard はMediaGuardServiceの新しいインスタンスを生成する。
// allowedHostsにはBaserow APIホストとメディア配信ホストを渡す。
// 空文字列のホストは無視する。
func NewMediaGuard(allowedHosts ...string) *mediaGuard {
	hosts := make(map[string]struct{}, len(allowedHosts))
	for _, h := range allowedHosts {
		if h == "" {
			continue
		}
		hosts[strings.ToLower(h)] = struct{}{}
	}
	return &mediaGuard{allowedHosts: hosts}
}

// NewSafeClient はSSRF防止機能付きのHTTPクライアントを生成する。
// 事前検証をすり抜けたDNS再バインディングはDialer側の検証で防止される。
func (g *mediaGuard) NewSafeClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(80, 443).
		Build()

	wrappedClient := safeurl.Client(config)
	return wrappedClient.Client
}

// ValidateURL はプロキシ対象URLの安全性を事前に検証する。
// ホストは許可リストとの完全一致を要求するため、外部ストアが返した
// 配信ホスト以外への中継はできない。
func (g *mediaGuard) ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("empty URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	// スキーム検証: http/httpsのみ許可
	scheme := strings.ToLower(parsed.Scheme)
	if !isAllowedScheme(scheme) {
		return fmt.Errorf("disallowed scheme: %s (allowed: %v)", scheme, allowedSchemes)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("empty host in URL: %s", rawURL)
	}

	// ホスト検証: 許可リストとの完全一致
	if _, ok := g.allowedHosts[strings.ToLower(host)]; !ok {
		return fmt.Errorf("host not in allowlist: %s", host)
	}

	// IPアドレスの場合: ブロック対象CIDRとの照合
	if ip := net.ParseIP(host); ip != nil && isBlockedIP(ip) {
		return fmt.Errorf("blocked IP address: %s", ip.String())
	}

	return nil
}

// isAllowedScheme はURLスキームが許可リストに含まれるかを検証する。
func isAllowedScheme(scheme string) bool {
	for _, allowed := range allowedSchemes {
		if strings.EqualFold(scheme, allowed) {
			return true
		}
	}
	return false
}

// isBlockedIP はIPアドレスがブロック対象のネットワーク範囲に含まれるかを検証する。
func isBlockedIP(ip net.IP) bool {
	for _, network := range blockedNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}
