package api

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"carmarket/internal/middleware"
	"carmarket/internal/models"
	"carmarket/internal/service"
	"carmarket/internal/util"
)

const imagesField = "images"

func listingQuery(r *http.Request) (models.ListingQuery, bool) {
	q := r.URL.Query()
	p := pageOf(r)
	out := models.ListingQuery{
		SellerID: strings.TrimSpace(q.Get("seller_id")),
		Q:        q.Get("q"),
		Brand:    q.Get("brand"),
		FuelType: q.Get("fuel_type"),
		Limit:    p.limit(),
		Offset:   p.offset(),
	}
	for _, s := range splitCSV(q.Get("status")) {
		st := models.ListingStatus(strings.ToLower(s))
		if !st.Valid() {
			return out, false
		}
		out.Statuses = append(out.Statuses, st)
	}
	var ok bool
	if out.MinPrice, ok = queryFloat(r, "min_price"); !ok {
		return out, false
	}
	if out.MaxPrice, ok = queryFloat(r, "max_price"); !ok {
		return out, false
	}
	return out, true
}

func (h *Handlers) ListCars(w http.ResponseWriter, r *http.Request) {
	query, ok := listingQuery(r)
	if !ok {
		badRequest(w, r, "invalid filter")
		return
	}
	items, total, err := h.svc.ListListings(r.Context(), middleware.Actor(r.Context()), query)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writePage(w, pageOf(r), items, total)
}

func (h *Handlers) GetCar(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.GetListing(r.Context(), middleware.Actor(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, view)
}

func (h *Handlers) CreateCar(w http.ResponseWriter, r *http.Request) {
	var in service.ListingInput
	if !decodeJSON(w, r, &in) {
		return
	}
	l, err := h.svc.CreateListing(r.Context(), middleware.Actor(r.Context()), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusCreated, l)
}

func (h *Handlers) UpdateCar(w http.ResponseWriter, r *http.Request) {
	var in service.ListingInput
	if !decodeJSON(w, r, &in) {
		return
	}
	l, err := h.svc.UpdateListing(r.Context(), middleware.Actor(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, l)
}

func (h *Handlers) DeleteCar(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteListing(r.Context(), middleware.Actor(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handlers) ListCarImages(w http.ResponseWriter, r *http.Request) {
	imgs, err := h.svc.ListImages(r.Context(), middleware.Actor(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, imgs)
}

func (h *Handlers) UploadCarImages(w http.ResponseWriter, r *http.Request) {
	maxBody := h.cfg.MaxImageBytes*int64(h.cfg.MaxImagesPerListing) + (1 << 20)
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			util.WriteError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "upload too large", middleware.RequestID(r.Context()))
			return
		}
		badRequest(w, r, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()
	headers := r.MultipartForm.File[imagesField]
	files := make([]service.UploadFile, 0, len(headers))
	for _, fh := range headers {
		data, err := readPart(fh, h.cfg.MaxImageBytes)
		if err != nil {
			badRequest(w, r, fh.Filename+": "+err.Error())
			return
		}
		files = append(files, service.UploadFile{Name: fh.Filename, Data: data})
	}
	imgs, err := h.svc.UploadImages(r.Context(), middleware.Actor(r.Context()), chi.URLParam(r, "id"), files)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusCreated, imgs)
}

var errPartTooLarge = errors.New("image file too large")

func readPart(fh *multipart.FileHeader, maxBytes int64) ([]byte, error) {
	if fh.Size > maxBytes {
		return nil, errPartTooLarge
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, errPartTooLarge
	}
	return data, nil
}

func (h *Handlers) UpdateCarImage(w http.ResponseWriter, r *http.Request) {
	var in service.ImagePatchInput
	if !decodeJSON(w, r, &in) {
		return
	}
	img, err := h.svc.UpdateImage(r.Context(), middleware.Actor(r.Context()), chi.URLParam(r, "id"), chi.URLParam(r, "imageID"), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, img)
}

func (h *Handlers) DeleteCarImage(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteImage(r.Context(), middleware.Actor(r.Context()), chi.URLParam(r, "id"), chi.URLParam(r, "imageID")); err != nil {
		h.fail(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handlers) ReserveCar(w http.ResponseWriter, r *http.Request) {
	l, err := h.svc.ReserveListing(r.Context(), middleware.Actor(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, l)
}
