package web

import (
	"errors"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

var maxUpload int64 = 16 << 20

// Files exposes one flat directory for upload and download.
type Files struct {
	Dir   string
	Logs  *LogBuffer
	Model string
}

type fileInfo struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

func (f *Files) Handler() http.Handler {
	r := newRouter(f.Logs, f.Model)
	r.Get("/files/", f.list)
	r.Get("/files/{name}", f.download)
	r.Put("/files/{name}", f.upload)
	r.Delete("/files/{name}", f.remove)
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/files/", http.StatusFound)
	})
	return r
}

// path resolves a request name to a regular entry directly under Dir.
func (f *Files) path(r *http.Request) (string, bool) {
	name := chi.URLParam(r, "name")
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return "", false
	}
	return filepath.Join(f.Dir, name), true
}

func (f *Files) list(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(f.Dir)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := []fileInfo{}
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, fileInfo{Name: e.Name(), Size: info.Size(), ModTime: info.ModTime().UTC()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	writeJSON(w, http.StatusOK, map[string]any{"files": out})
}

func (f *Files) download(w http.ResponseWriter, r *http.Request) {
	p, ok := f.path(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid file name")
		return
	}
	file, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil || !info.Mode().IsRegular() {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="`+info.Name()+`"`)
	http.ServeContent(w, r, info.Name(), info.ModTime(), file)
}

// upload replaces the named file through a temp file and rename, so a
// dropped connection never leaves a truncated file behind.
func (f *Files) upload(w http.ResponseWriter, r *http.Request) {
	p, ok := f.path(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid file name")
		return
	}
	tmp, err := os.CreateTemp(f.Dir, ".upload-*")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	n, err := io.Copy(tmp, http.MaxBytesReader(w, r.Body, maxUpload))
	if err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, fileInfo{Name: filepath.Base(p), Size: n, ModTime: time.Now().UTC()})
}

func (f *Files) remove(w http.ResponseWriter, r *http.Request) {
	p, ok := f.path(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid file name")
		return
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
