package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/codeturtle/turtle-web/internal/config"
	"github.com/codeturtle/turtle-web/internal/http/views"
	"github.com/codeturtle/turtle-web/internal/render"
	"github.com/codeturtle/turtle-web/internal/upload"
	"github.com/codeturtle/turtle-web/internal/visitor"
)

const (
	maxImageBytes  = 10 << 20
	maxUploadBytes = upload.MaxFiles*maxImageBytes + 1<<20
)

// PreviewReader serves the bytes behind a preview handle.
type PreviewReader interface {
	Read(ctx context.Context, h upload.Handle) (string, []byte, error)
}

// solvePage is the data of the solve template.
type solvePage struct {
	Entries        []upload.Entry
	MaxFiles       int
	Remaining      int
	InputDisabled  bool
	SubmitDisabled bool
	Loading        bool
	SelectionError string
	Models         []config.ModelOption
	Model          string
	Instructions   string
	Result         *render.ResultView
}

// SolveHandler owns the protected solve page and its image selection.
type SolveHandler struct {
	site     *Site
	previews PreviewReader
}

// NewSolveHandler constructs the handler.
func NewSolveHandler(site *Site, previews PreviewReader) *SolveHandler {
	return &SolveHandler{site: site, previews: previews}
}

// Register attaches the solve routes; r is expected to be behind the guard.
func (h *SolveHandler) Register(r chi.Router) {
	r.Get("/solve", h.show)
	r.Post("/solve", h.submit)
	r.Post("/solve/images", h.selectImages)
	r.Post("/solve/images/{index}/remove", h.removeImage)
	r.Get("/solve/previews/{handle}", h.preview)
}

func (h *SolveHandler) show(w http.ResponseWriter, r *http.Request) {
	v := mustVisitor(w, r)
	if v == nil {
		return
	}
	h.render(w, r, v, v.Workflow.DefaultModel(), "")
}

func (h *SolveHandler) render(w http.ResponseWriter, r *http.Request, v *visitor.Visitor, model, instructions string) {
	st := v.Workflow.State()
	entries := v.Selection.Entries()
	data := solvePage{
		Entries:        entries,
		MaxFiles:       upload.MaxFiles,
		Remaining:      v.Selection.Remaining(),
		InputDisabled:  v.Selection.InputDisabled(st.Loading),
		SubmitDisabled: st.Loading || len(entries) == 0,
		Loading:        st.Loading,
		SelectionError: v.Selection.ErrorMessage(),
		Models:         v.Workflow.Models(),
		Model:          model,
		Instructions:   instructions,
	}
	if st.Result != nil {
		view := render.NewResultView(*st.Result)
		data.Result = &view
	}
	p := h.site.page(r, "Solve")
	p.Error = st.Error
	p.Data = data
	h.site.Views.Render(w, http.StatusOK, views.PageSolve, p)
}

func (h *SolveHandler) selectImages(w http.ResponseWriter, r *http.Request) {
	v := mustVisitor(w, r)
	if v == nil {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		v.Selection.SetError("Could not read the uploaded files")
		log.Warn().Err(err).Str("visitor", v.ID).Msg("[solve] parse upload")
		seeOther(w, r, "/solve")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	files, err := readImages(r.MultipartForm.File["images"])
	if err != nil {
		v.Selection.SetError(err.Error())
		seeOther(w, r, "/solve")
		return
	}

	if solving(w, v) {
		return
	}
	v.Lock()
	defer v.Unlock()
	if err := v.Selection.Select(r.Context(), files); err != nil {
		if errors.Is(err, upload.ErrNotImage) {
			v.Selection.SetError("Only image files can be uploaded")
		} else {
			log.Error().Err(err).Str("visitor", v.ID).Msg("[solve] select images")
			v.Selection.SetError("Could not store the selected images")
		}
	}
	seeOther(w, r, "/solve")
}

// readImages reads at most MaxFiles parts; the rest are dropped like the selection drops them.
func readImages(headers []*multipart.FileHeader) ([]upload.File, error) {
	if len(headers) > upload.MaxFiles {
		headers = headers[:upload.MaxFiles]
	}
	files := make([]upload.File, 0, len(headers))
	for _, fh := range headers {
		if fh.Size > maxImageBytes {
			return nil, fmt.Errorf("%s is larger than %d MB", fh.Filename, maxImageBytes>>20)
		}
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("could not read %s", fh.Filename)
		}
		data, err := io.ReadAll(io.LimitReader(f, maxImageBytes))
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("could not read %s", fh.Filename)
		}
		files = append(files, upload.File{Name: fh.Filename, ContentType: fh.Header.Get("Content-Type"), Data: data})
	}
	return files, nil
}

func (h *SolveHandler) removeImage(w http.ResponseWriter, r *http.Request) {
	v := mustVisitor(w, r)
	if v == nil {
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		http.Error(w, "invalid index", http.StatusBadRequest)
		return
	}

	if solving(w, v) {
		return
	}
	v.Lock()
	defer v.Unlock()
	if err := v.Selection.Remove(r.Context(), index); err != nil {
		if errors.Is(err, upload.ErrIndexOutOfRange) {
			http.Error(w, "no such image", http.StatusNotFound)
			return
		}
		log.Warn().Err(err).Str("visitor", v.ID).Int("index", index).Msg("[solve] remove image")
	}
	seeOther(w, r, "/solve")
}

// solving refuses a selection change while the visitor's solve is in flight. The
// submit holds the visitor lock for the whole call, so this is checked before
// taking it.
func solving(w http.ResponseWriter, v *visitor.Visitor) bool {
	if !v.Workflow.State().Loading {
		return false
	}
	http.Error(w, "a solve is in progress", http.StatusConflict)
	return true
}

// preview serves a preview only to the visitor whose selection owns it.
func (h *SolveHandler) preview(w http.ResponseWriter, r *http.Request) {
	v := mustVisitor(w, r)
	if v == nil {
		return
	}
	handle := upload.Handle(chi.URLParam(r, "handle"))
	if !v.Selection.Owns(handle) {
		http.NotFound(w, r)
		return
	}
	contentType, data, err := h.previews.Read(r.Context(), handle)
	if err != nil {
		log.Warn().Err(err).Str("visitor", v.ID).Msg("[solve] read preview")
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	_, _ = w.Write(data)
}

func (h *SolveHandler) submit(w http.ResponseWriter, r *http.Request) {
	v := mustVisitor(w, r)
	if v == nil {
		return
	}
	model := strings.TrimSpace(r.PostFormValue("model"))
	if model == "" {
		model = v.Workflow.DefaultModel()
	}
	instructions := strings.TrimSpace(r.PostFormValue("additionalInstructions"))

	v.Lock()
	st := v.Workflow.Submit(r.Context(), model, instructions)
	v.Unlock()
	if st.Result != nil {
		// Credits were spent; the header shows the new balance.
		v.Session.Refresh(r.Context())
	}
	h.render(w, r, v, model, instructions)
}
