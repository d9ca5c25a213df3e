package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
)

// PagesHandler はフロントエンドのHTMLと静的ファイルを配信します。
type PagesHandler struct {
	dir  string
	auth *AuthHandler
}

// NewPagesHandler は新しいPagesHandlerを生成します。
func NewPagesHandler(dir string, auth *AuthHandler) *PagesHandler {
	return &PagesHandler{dir: dir, auth: auth}
}

// Index はログイン画面を返します。ログイン済みならダッシュボードへ転送します。
func (h *PagesHandler) Index(c *gin.Context) {
	if _, ok := h.auth.sessionUser(c); ok {
		c.Redirect(http.StatusFound, DashboardPath)
		return
	}
	h.serve(c, "index.html")
}

// Dashboard はダッシュボード画面を返します。未ログインならログイン画面へ転送します。
func (h *PagesHandler) Dashboard(c *gin.Context) {
	if _, ok := h.auth.sessionUser(c); !ok {
		c.Redirect(http.StatusFound, "/")
		return
	}
	h.serve(c, "dashboard.html")
}

// Static はフロントエンドディレクトリ配下のファイルを返します。
func (h *PagesHandler) Static(c *gin.Context) {
	name := strings.TrimPrefix(filepath.Clean("/"+c.Request.URL.Path), "/")
	if name == "" || c.Request.Method != http.MethodGet {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Not found"})
		return
	}
	// "//dashboard.html" などの非正規パスもセッション確認を通す
	switch {
	case strings.EqualFold(name, "dashboard.html"):
		h.Dashboard(c)
		return
	case strings.EqualFold(name, "index.html"):
		h.Index(c)
		return
	}
	h.serve(c, name)
}

func (h *PagesHandler) serve(c *gin.Context, name string) {
	path := filepath.Join(h.dir, filepath.FromSlash(name))
	f, err := os.Open(path)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Not found"})
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Not found"})
		return
	}
	// http.ServeFileは/index.htmlを"./"へリダイレクトするのでServeContentを使う
	http.ServeContent(c.Writer, c.Request, info.Name(), info.ModTime(), f)
}
