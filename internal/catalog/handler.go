package catalog

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/madhur53/library-management-system/internal/domain"
	"github.com/madhur53/library-management-system/internal/webutil"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Routes mounts the catalog service's public surface.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Route("/api/catalog", func(r chi.Router) {
		r.Route("/books", func(r chi.Router) {
			r.Get("/", h.handleListBooks)
			r.Post("/", h.handleCreateBook)
			r.Get("/search", h.handleSearchBooks)
			r.Get("/{id}", h.handleGetBook)
			r.Put("/{id}", h.handleUpdateBook)
			r.Delete("/{id}", h.handleDeleteBook)
			r.Get("/{id}/availability", h.handleAvailability)
		})

		r.Route("/copies", func(r chi.Router) {
			r.Get("/", h.handleListCopies)
			r.Post("/", h.handleCreateCopy)
			r.Get("/book/{bookId}", h.handleCopiesByBook)
		})

		r.Post("/borrow", h.handleBorrow)
		r.Post("/borrow/book", h.handleBorrowByBook)
		r.Post("/return", h.handleReturn)

		r.Get("/borrows/user/{userId}", h.handleBorrowHistory)
		r.Get("/borrows/active/member/{memberId}", h.handleActiveBorrows)
	})

	return r
}

func (h *Handler) handleListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := h.service.ListBooks(r.Context())
	if err != nil {
		webutil.HandleError(w, r, err)
		return
	}
	webutil.JSON(w, r, http.StatusOK, books)
}

func (h *Handler) handleCreateBook(w http.ResponseWriter, r *http.Request) {
	var book Book
	if err := render.DecodeJSON(r.Body, &book); err != nil {
		webutil.WriteError(w, r, http.StatusBadRequest, domain.CodeBadRequest, "invalid request body")
		return
	}

	if err := h.service.CreateBook(r.Context(), &book); err != nil {
		webutil.HandleError(w, r, err)
		return
	}
	webutil.JSON(w, r, http.StatusCreated, book)
}

func (h *Handler) handleSearchBooks(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		webutil.WriteError(w, r, http.StatusBadRequest, domain.CodeBadRequest, "missing search query")
		return
	}

	books, err := h.service.SearchBooks(r.Context(), query)
	if err != nil {
		webutil.HandleError(w, r, err)
		return
	}
	webutil.JSON(w, r, http.StatusOK, books)
}

func (h *Handler) handleGetBook(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	book, err := h.service.GetBook(r.Context(), id)
	if err != nil {
		webutil.HandleError(w, r, err)
		return
	}
	webutil.JSON(w, r, http.StatusOK, book)
}

func (h *Handler) handleUpdateBook(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var book Book
	if err := render.DecodeJSON(r.Body, &book); err != nil {
		webutil.WriteError(w, r, http.StatusBadRequest, domain.CodeBadRequest, "invalid request body")
		return
	}
	book.ID = id

	if err := h.service.UpdateBook(r.Context(), &book); err != nil {
		webutil.HandleError(w, r, err)
		return
	}
	webutil.JSON(w, r, http.StatusOK, book)
}

func (h *Handler) handleDeleteBook(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteBook(r.Context(), id); err != nil {
		webutil.HandleError(w, r, err)
		return
	}
	webutil.JSON(w, r, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) handleAvailability(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	avail, err := h.service.GetAvailability(r.Context(), id)
	if err != nil {
		webutil.HandleError(w, r, err)
		return
	}
	webutil.JSON(w, r, http.StatusOK, avail)
}

func (h *Handler) handleListCopies(w http.ResponseWriter, r *http.Request) {
	copies, err := h.service.ListCopies(r.Context())
	if err != nil {
		webutil.HandleError(w, r, err)
		return
	}
	webutil.JSON(w, r, http.StatusOK, copies)
}

func (h *Handler) handleCreateCopy(w http.ResponseWriter, r *http.Request) {
	var copy BookCopy
	if err := render.DecodeJSON(r.Body, &copy); err != nil {
		webutil.WriteError(w, r, http.StatusBadRequest, domain.CodeBadRequest, "invalid request body")
		return
	}

	if err := h.service.CreateCopy(r.Context(), &copy); err != nil {
		webutil.HandleError(w, r, err)
		return
	}
	webutil.JSON(w, r, http.StatusCreated, copy)
}

func (h *Handler) handleCopiesByBook(w http.ResponseWriter, r *http.Request) {
	bookID, ok := pathID(w, r, "bookId")
	if !ok {
		return
	}

	copies, err := h.service.CopiesByBook(r.Context(), bookID)
	if err != nil {
		webutil.HandleError(w, r, err)
		return
	}
	webutil.JSON(w, r, http.StatusOK, copies)
}

func (h *Handler) handleBorrow(w http.ResponseWriter, r *http.Request) {
	var req BorrowRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		webutil.WriteError(w, r, http.StatusBadRequest, domain.CodeBadRequest, "invalid request body")
		return
	}
	req.BookID = 0

	h.borrow(w, r, req)
}

func (h *Handler) handleBorrowByBook(w http.ResponseWriter, r *http.Request) {
	var req BorrowRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		webutil.WriteError(w, r, http.StatusBadRequest, domain.CodeBadRequest, "invalid request body")
		return
	}
	req.BookCopyID = 0

	h.borrow(w, r, req)
}

func (h *Handler) borrow(w http.ResponseWriter, r *http.Request, req BorrowRequest) {
	receipt, err := h.service.Borrow(r.Context(), req)
	if err != nil {
		webutil.HandleError(w, r, err)
		return
	}
	webutil.JSON(w, r, http.StatusOK, receipt)
}

func (h *Handler) handleReturn(w http.ResponseWriter, r *http.Request) {
	var req ReturnRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		webutil.WriteError(w, r, http.StatusBadRequest, domain.CodeBadRequest, "invalid request body")
		return
	}

	receipt, err := h.service.Return(r.Context(), req)
	if err != nil {
		webutil.HandleError(w, r, err)
		return
	}
	webutil.JSON(w, r, http.StatusOK, receipt)
}

func (h *Handler) handleBorrowHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userId")
	if !ok {
		return
	}

	borrows, err := h.service.BorrowHistory(r.Context(), userID)
	if err != nil {
		webutil.HandleError(w, r, err)
		return
	}
	webutil.JSON(w, r, http.StatusOK, borrows)
}

// handleActiveBorrows answers the membership deactivation precondition: 200
// with the active borrows when the member's user holds any, 404 otherwise.
// The member id on the path is the member's linked user id; members map 1:1
// to users and the catalog only knows borrower user ids.
func (h *Handler) handleActiveBorrows(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "memberId")
	if !ok {
		return
	}

	active, borrows, err := h.service.HasActiveBorrows(r.Context(), userID)
	if err != nil {
		webutil.HandleError(w, r, err)
		return
	}
	if !active {
		webutil.WriteError(w, r, http.StatusNotFound, domain.CodeNotFound, "no active borrows")
		return
	}
	webutil.JSON(w, r, http.StatusOK, borrows)
}

func pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil {
		webutil.WriteError(w, r, http.StatusBadRequest, domain.CodeBadRequest, "invalid "+param)
		return 0, false
	}
	return id, true
}
