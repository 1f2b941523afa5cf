package origin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// ErrNotFound 表示源站没有该 (key, id) 对应的音频。
var ErrNotFound = errors.New("origin item not found")

// AudioItem 是源站解析出的音频元数据，仅在单次请求内使用，不做持久化。
// Optimized 表示源地址已经过优化，可以跳过代理直接访问（包括探测）。
type AudioItem struct {
	Artist    string `json:"artist"`
	Title     string `json:"title"`
	SourceURL string `json:"source_url"`
	Optimized bool   `json:"optimized"`
}

// DisplayName 返回用于强制下载的展示文件名（Artist - Title.mp3），
// 文件系统敏感字符会被剔除；元数据为空时返回空串，由调用方决定兜底名。
func (a *AudioItem) DisplayName() string {
	base := strings.TrimSpace(strings.TrimSpace(a.Artist) + " - " + strings.TrimSpace(a.Title))
	base = strings.Trim(base, "- ")
	if base == "" {
		return ""
	}

	var b strings.Builder
	for _, r := range base {
		switch {
		case r < 0x20, strings.ContainsRune(`/\:*?"<>|`, r):
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	// 清洗可能吃掉两侧的全部字符，只剩下分隔符本身。
	cleaned := strings.Trim(strings.Join(strings.Fields(b.String()), " "), "- ")
	if cleaned == "" {
		return ""
	}
	return cleaned + ".mp3"
}

// Resolver 把 (key, id) 解析为音频元数据与源地址。
// 具体的源站服务属于外部协作方，这里只约定契约。
type Resolver interface {
	Resolve(ctx context.Context, key, id string) (*AudioItem, error)
}

// HTTPResolver 通过 JSON 接口查询源站：GET {base}/lookup?key=...&id=...
// 404 映射为 ErrNotFound，其余非 2xx 状态视为源站故障。
type HTTPResolver struct {
	base   string
	client *http.Client
}

// NewHTTPResolver 构造 HTTP 源站解析器，client 为 nil 时使用默认客户端。
func NewHTTPResolver(base string, client *http.Client) *HTTPResolver {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPResolver{
		base:   strings.TrimRight(base, "/"),
		client: client,
	}
}

func (r *HTTPResolver) Resolve(ctx context.Context, key, id string) (*AudioItem, error) {
	query := url.Values{}
	query.Set("key", key)
	query.Set("id", id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.base+"/lookup?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("origin lookup status %d", resp.StatusCode)
	}

	var item AudioItem
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return nil, fmt.Errorf("decode origin response: %w", err)
	}
	if item.SourceURL == "" {
		return nil, ErrNotFound
	}
	return &item, nil
}
