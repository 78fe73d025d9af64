package identity

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
	tokens  *TokenIssuer
}

func NewHandler(service Service, tokens *TokenIssuer) *Handler {
	return &Handler{service: service, tokens: tokens}
}

// Routes mounts the identity service's public surface.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(ActorContext(h.tokens))

	r.Route("/api", func(r chi.Router) {
		r.Get("/users", h.handleListUsers)
		r.Post("/users", h.handleRegisterUser)
		r.Post("/users/login", h.handleLoginUser)
		r.Post("/admins/login", h.handleLoginAdmin)

		r.Get("/members", h.handleListMembers)
		r.Post("/members", h.handleCreateMember)
		r.Delete("/members/{id}", h.handleDeactivateMember)
		r.Post("/members/{id}/restore", h.handleRestoreMember)
		r.Get("/members/{id}/history", h.handleMemberHistory)
	})

	return r
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		webutil.HandleError(w, r, err)
		return
	}
	webutil.JSON(w, r, http.StatusOK, users)
}

func (h *Handler) handleRegisterUser(w http.ResponseWriter, r *http.Request) {
	var input RegisterUserInput
	if err := render.DecodeJSON(r.Body, &input); err != nil {
		webutil.WriteError(w, r, http.StatusBadRequest, domain.CodeBadRequest, "invalid request body")
		return
	}

	user, err := h.service.RegisterUser(r.Context(), input)
	if err != nil {
		webutil.HandleError(w, r, err)
		return
	}
	webutil.JSON(w, r, http.StatusCreated, user)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) handleLoginUser(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		webutil.WriteError(w, r, http.StatusBadRequest, domain.CodeBadRequest, "invalid request body")
		return
	}

	result, err := h.service.LoginUser(r.Context(), req.Username, req.Password)
	if err != nil {
		webutil.HandleError(w, r, err)
		return
	}
	webutil.JSON(w, r, http.StatusOK, result)
}

func (h *Handler) handleLoginAdmin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		webutil.WriteError(w, r, http.StatusBadRequest, domain.CodeBadRequest, "invalid request body")
		return
	}

	result, err := h.service.LoginAdmin(r.Context(), req.Username, req.Password)
	if err != nil {
		webutil.HandleError(w, r, err)
		return
	}
	webutil.JSON(w, r, http.StatusOK, result)
}

func (h *Handler) handleListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.service.ListMembers(r.Context())
	if err != nil {
		webutil.HandleError(w, r, err)
		return
	}
	webutil.JSON(w, r, http.StatusOK, members)
}

type createMemberRequest struct {
	UserID int64 `json:"userId"`
}

func (h *Handler) handleCreateMember(w http.ResponseWriter, r *http.Request) {
	var req createMemberRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		webutil.WriteError(w, r, http.StatusBadRequest, domain.CodeBadRequest, "invalid request body")
		return
	}

	member, err := h.service.CreateMember(r.Context(), req.UserID)
	if err != nil {
		webutil.HandleError(w, r, err)
		return
	}
	webutil.JSON(w, r, http.StatusCreated, member)
}

func (h *Handler) handleDeactivateMember(w http.ResponseWriter, r *http.Request) {
	id, ok := memberID(w, r)
	if !ok {
		return
	}

	if err := h.service.Deactivate(r.Context(), id); err != nil {
		webutil.HandleError(w, r, err)
		return
	}
	webutil.JSON(w, r, http.StatusOK, map[string]string{"status": "deactivated"})
}

func (h *Handler) handleRestoreMember(w http.ResponseWriter, r *http.Request) {
	id, ok := memberID(w, r)
	if !ok {
		return
	}

	if err := h.service.Restore(r.Context(), id); err != nil {
		webutil.HandleError(w, r, err)
		return
	}
	webutil.JSON(w, r, http.StatusOK, map[string]string{"status": "restored"})
}

func (h *Handler) handleMemberHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := memberID(w, r)
	if !ok {
		return
	}

	events, err := h.service.MemberHistory(r.Context(), id)
	if err != nil {
		webutil.HandleError(w, r, err)
		return
	}
	webutil.JSON(w, r, http.StatusOK, events)
}

func memberID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		webutil.WriteError(w, r, http.StatusBadRequest, domain.CodeBadRequest, "invalid member id")
		return 0, false
	}
	return id, true
}
