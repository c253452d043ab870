package handler

import (
	"net/http"
	"os"
	"path/filepath"
)

// pageFiles はページパスと静的ディレクトリ内のファイルの対応。
// ルートガードの対象となるページはここに列挙されたものだけ。
var pageFiles = map[string]string{
	"/":         "index.html",
	"/login":    "login.html",
	"/register": "register.html",
	"/gallery":  "gallery.html",
}

// PageHandler は静的フロントエンドのページ配信ハンドラー。
type PageHandler struct {
	staticDir string
}

// NewPageHandler はPageHandlerを生成する。
func NewPageHandler(staticDir string) *PageHandler {
	return &PageHandler{staticDir: staticDir}
}

// ServePage はページパスに対応するHTMLファイルを配信する。
// 対応するファイルが存在しない場合は404を返す。
func (h *PageHandler) ServePage(w http.ResponseWriter, r *http.Request) {
	file, ok := pageFiles[r.URL.Path]
	if !ok {
		http.NotFound(w, r)
		return
	}

	path := filepath.Join(h.staticDir, file)
	if _, err := os.Stat(path); err != nil {
		http.NotFound(w, r)
		return
	}

	http.ServeFile(w, r, path)
}

// Assets は/assets/配下の静的ファイルを配信するハンドラーを返す。
// ページと異なりルートガードの対象外（ログインページ自身が参照するため）。
func (h *PageHandler) Assets() http.Handler {
	fs := http.FileServer(http.Dir(filepath.Join(h.staticDir, "assets")))
	return http.StripPrefix("/assets/", fs)
}
