package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/vithxrlorencetti/TransactionsAPI/internal/domain"
	"github.com/vithxrlorencetti/TransactionsAPI/internal/usecase"
)

// Handler exposes the ledger and account use cases over HTTP.
type Handler struct {
	ledger   *usecase.LedgerUseCase
	accounts *usecase.AccountUseCase
	log      *logrus.Logger
}

func NewHandler(ledger *usecase.LedgerUseCase, accounts *usecase.AccountUseCase, log *logrus.Logger) *Handler {
	return &Handler{ledger: ledger, accounts: accounts, log: log}
}

// Router builds the route table. Register and login are public; everything
// else requires a bearer token.
func (h *Handler) Router(auth mux.MiddlewareFunc) *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/users/register", h.register).Methods(http.MethodPost)
	api.HandleFunc("/users/login", h.login).Methods(http.MethodPost)

	authed := api.NewRoute().Subrouter()
	authed.Use(auth)
	authed.HandleFunc("/users", h.listUsers).Methods(http.MethodGet)
	authed.HandleFunc("/users/{id:[0-9]+}", h.getUser).Methods(http.MethodGet)
	authed.HandleFunc("/users/{id:[0-9]+}", h.disableUser).Methods(http.MethodDelete)
	authed.HandleFunc("/transactions/deposit", h.deposit).Methods(http.MethodPost)
	authed.HandleFunc("/transactions/transfer", h.transfer).Methods(http.MethodPost)
	authed.HandleFunc("/transactions/revert/{transactionId:[0-9]+}", h.revert).Methods(http.MethodPost)
	authed.HandleFunc("/transactions/user/{userId:[0-9]+}", h.listTransactions).Methods(http.MethodGet)
	authed.HandleFunc("/transactions/export/{userId:[0-9]+}", h.exportCSV).Methods(http.MethodGet)

	return r
}

type registerRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	PostalCode string `json:"postal_code"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type depositRequest struct {
	UserID      int64           `json:"user_id"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

type transferRequest struct {
	SenderID    int64           `json:"sender_id"`
	ReceiverID  int64           `json:"receiver_id"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type accountResponse struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Balance      string     `json:"balance"`
	PostalCode   string     `json:"postal_code"`
	Street       string     `json:"street"`
	Complement   string     `json:"complement,omitempty"`
	Neighborhood string     `json:"neighborhood"`
	City         string     `json:"city"`
	State        string     `json:"state"`
	CreatedAt    time.Time  `json:"created_at"`
	DisabledAt   *time.Time `json:"disabled_at,omitempty"`
}

type transactionResponse struct {
	ID          int64      `json:"id"`
	SenderID    *int64     `json:"sender_id,omitempty"`
	ReceiverID  int64      `json:"receiver_id"`
	Sender      string     `json:"sender,omitempty"`
	Receiver    string     `json:"receiver"`
	Amount      string     `json:"amount"`
	Type        string     `json:"type"`
	Description string     `json:"description,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ReversedAt  *time.Time `json:"reversed_at,omitempty"`
}

type pageResponse struct {
	Items      any `json:"items"`
	TotalCount int `json:"total_count"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
}

func toAccountResponse(a *domain.Account) accountResponse {
	return accountResponse{
		ID:           a.ID,
		Name:         a.Name,
		Email:        a.Email,
		Balance:      a.Balance.StringFixed(2),
		PostalCode:   a.PostalCode,
		Street:       a.Street,
		Complement:   a.Complement,
		Neighborhood: a.Neighborhood,
		City:         a.City,
		State:        a.State,
		CreatedAt:    a.CreatedAt,
		DisabledAt:   a.DisabledAt,
	}
}

func toTransactionResponse(t *domain.Transaction) transactionResponse {
	return transactionResponse{
		ID:          t.ID,
		SenderID:    t.SenderID,
		ReceiverID:  t.ReceiverID,
		Sender:      t.SenderName,
		Receiver:    t.ReceiverName,
		Amount:      t.Amount.StringFixed(2),
		Type:        string(t.Type),
		Description: t.Description,
		CreatedAt:   t.CreatedAt,
		ReversedAt:  t.ReversedAt,
	}
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, messageResponse{Message: "invalid request body"})
		return
	}

	address, err := h.accounts.Register(r.Context(), req.Name, req.Email, req.Password, req.PostalCode)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, messageResponse{
		Message: fmt.Sprintf("User %s registered successfully. Address: %s.", req.Name, address),
	})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, messageResponse{Message: "invalid request body"})
		return
	}

	token, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, tokenResponse{Token: token})
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pagingParams(r)
	accounts, total, err := h.accounts.List(r.Context(), page, pageSize)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	items := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		items = append(items, toAccountResponse(a))
	}
	h.writeJSON(w, http.StatusOK, pageResponse{Items: items, TotalCount: total, Page: page, PageSize: pageSize})
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, messageResponse{Message: "invalid user id"})
		return
	}

	account, err := h.accounts.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toAccountResponse(account))
}

func (h *Handler) disableUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, messageResponse{Message: "invalid user id"})
		return
	}

	name, err := h.accounts.Disable(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, messageResponse{
		Message: fmt.Sprintf("User %s was successfully disabled.", name),
	})
}

func (h *Handler) deposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, messageResponse{Message: "invalid request body"})
		return
	}

	name, err := h.ledger.Deposit(r.Context(), req.UserID, req.Amount, req.Description)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, messageResponse{
		Message: fmt.Sprintf("Deposit of %s for user %s was successfully completed.", req.Amount.StringFixed(2), name),
	})
}

func (h *Handler) transfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, messageResponse{Message: "invalid request body"})
		return
	}

	senderName, receiverName, err := h.ledger.Transfer(r.Context(), req.SenderID, req.ReceiverID, req.Amount, req.Description)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, messageResponse{
		Message: fmt.Sprintf("Transfer of %s from %s to %s was successfully completed.",
			req.Amount.StringFixed(2), senderName, receiverName),
	})
}

func (h *Handler) revert(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "transactionId")
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, messageResponse{Message: "invalid transaction id"})
		return
	}

	if err := h.ledger.Revert(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, messageResponse{
		Message: fmt.Sprintf("Transaction %d was successfully reverted.", id),
	})
}

func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "userId")
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, messageResponse{Message: "invalid user id"})
		return
	}

	page, pageSize := pagingParams(r)
	history, err := h.ledger.ListForAccount(r.Context(), id, page, pageSize)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	items := make([]transactionResponse, 0, len(history.Transactions))
	for _, t := range history.Transactions {
		items = append(items, toTransactionResponse(t))
	}
	h.writeJSON(w, http.StatusOK, pageResponse{
		Items:      items,
		TotalCount: history.TotalCount,
		Page:       history.Page,
		PageSize:   history.PageSize,
	})
}

func (h *Handler) exportCSV(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "userId")
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, messageResponse{Message: "invalid user id"})
		return
	}

	filterType := r.URL.Query().Get("filterType")
	if filterType == "" {
		filterType = "all"
	}
	month := queryInt(r, "month")
	year := queryInt(r, "year")

	// The account must exist before we hand out an empty document for it.
	if _, err := h.accounts.Get(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}

	data, err := h.ledger.ExportCSV(r.Context(), id, filterType, month, year)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	filename := fmt.Sprintf("transactions_%d_%s.csv", id, time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.log.WithError(err).Warn("failed to write csv response")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.WithError(err).Warn("failed to encode response")
	}
}

// writeError maps domain errors to HTTP statuses. Internal failures are
// logged with full context but reported opaquely.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	switch domain.KindOf(err) {
	case domain.KindNotFound:
		status = http.StatusNotFound
	case domain.KindBadRequest:
		status = http.StatusBadRequest
	case domain.KindConflict:
		status = http.StatusConflict
	case domain.KindUnauthorized:
		status = http.StatusUnauthorized
	default:
		h.log.WithError(err).WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Error("request failed")
		h.writeJSON(w, http.StatusInternalServerError, messageResponse{Message: "internal server error"})
		return
	}
	h.writeJSON(w, status, messageResponse{Message: err.Error()})
}

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)[name], 10, 64)
}

func pagingParams(r *http.Request) (page, pageSize int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ = strconv.Atoi(r.URL.Query().Get("pageSize"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}

func queryInt(r *http.Request, name string) *int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	return &v
}
