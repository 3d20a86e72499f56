package panel

import (
	"embed"
	"errors"
	"io/fs"
	"net/http"
	"os"
)

//go:embed web
var embedded embed.FS

// Handler serves the dashboard. When dir is an existing directory the files
// are read from disk on each request, so the page can be edited without a
// rebuild; otherwise the embedded copy is served. Paths that match no file
// get index.html.
func Handler(dir string) http.Handler {
	files := http.FileServer(spaFS{assets(dir)})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Asset names carry no content hash.
		w.Header().Set("Cache-Control", "no-cache, must-revalidate")
		files.ServeHTTP(w, r)
	})
}

func assets(dir string) http.FileSystem {
	if dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return http.Dir(dir)
		}
	}
	web, err := fs.Sub(embedded, "web")
	if err != nil {
		panic("panel: embedded assets missing: " + err.Error())
	}
	return http.FS(web)
}

// spaFS answers opens of missing files with index.html.
type spaFS struct {
	http.FileSystem
}

func (s spaFS) Open(name string) (http.File, error) {
	f, err := s.FileSystem.Open(name)
	if errors.Is(err, fs.ErrNotExist) {
		return s.FileSystem.Open("/index.html")
	}
	return f, err
}
