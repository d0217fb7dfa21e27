package http

import (
	"context"
	"net/http"
	"strings"

	"budgetbook/internal/core"
	"budgetbook/internal/services"
)

// Handler holds the services the API delegates to.
type Handler struct {
	Entries    *services.EntryService
	Specs      *services.SpecService
	Categories *services.CategoryService
	Accounts   *services.AccountService
	Tags       *services.TagService
	Reports    *services.ReportService

	// Ready reports whether the store is reachable.
	Ready func(ctx context.Context) error
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.Ready != nil {
		if err := h.Ready(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: errorDetail{
				Kind:    string(core.KindStorageUnavailable),
				Message: "store not ready",
			}})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// ---- entries ----

func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	q := &queryParams{r: r}
	f := core.EntryFilter{
		From:       q.date("from"),
		To:         q.date("to"),
		Kind:       q.kind("kind"),
		CategoryID: q.id("category"),
		AccountID:  q.id("account"),
		TagID:      q.id("tag"),
		SpecID:     q.id("spec"),
		Text:       q.str("q"),
		Limit:      q.num("limit"),
		Offset:     q.num("offset"),
	}
	if q.err != nil {
		badRequest(w, "%v", q.err)
		return
	}

	page, err := h.Entries.List(r.Context(), ownerFrom(r), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := EntryPageDTO{Entries: make([]EntryDTO, len(page.Entries)), Total: page.Total, Limit: page.Limit, Offset: page.Offset}
	for i, e := range page.Entries {
		out.Entries[i] = toEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	var req EntryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	e, err := req.toEntry(ownerFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	created, err := h.Entries.Create(r.Context(), e)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryDTO(created))
}

func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	e, err := h.Entries.Get(r.Context(), ownerFrom(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(e))
}

func (h *Handler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req EntryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	e, err := req.toEntry(ownerFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	e.ID = id
	updated, err := h.Entries.Update(r.Context(), e)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(updated))
}

func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.Entries.Delete(r.Context(), ownerFrom(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- specs ----

func (h *Handler) ListSpecs(w http.ResponseWriter, r *http.Request) {
	q := &queryParams{r: r}
	status := q.status("status")
	if q.err != nil {
		badRequest(w, "%v", q.err)
		return
	}
	specs, err := h.Specs.List(r.Context(), ownerFrom(r), status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]SpecDTO, len(specs))
	for i, s := range specs {
		out[i] = toSpecDTO(s)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) CreateSpec(w http.ResponseWriter, r *http.Request) {
	var req SpecRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	spec, err := req.toSpec(ownerFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	created, err := h.Specs.Create(r.Context(), spec)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSpecDTO(created))
}

func (h *Handler) GetSpec(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	spec, err := h.Specs.Get(r.Context(), ownerFrom(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSpecDTO(spec))
}

func (h *Handler) UpdateSpec(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req SpecRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	spec, err := req.toSpec(ownerFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	spec.ID = id
	updated, err := h.Specs.Update(r.Context(), spec)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSpecDTO(updated))
}

func (h *Handler) DeleteSpec(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	q := &queryParams{r: r}
	cascade := q.boolean("cascade")
	if q.err != nil {
		badRequest(w, "%v", q.err)
		return
	}
	if err := h.Specs.Delete(r.Context(), ownerFrom(r), id, cascade); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// specTransition adapts Pause, Resume and Finalize.
func (h *Handler) specTransition(fn func(ctx context.Context, owner core.OwnerID, id int64) (core.RecurrenceSpec, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		spec, err := fn(r.Context(), ownerFrom(r), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toSpecDTO(spec))
	}
}

func (h *Handler) ProjectSpec(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	q := &queryParams{r: r}
	until := q.date("until")
	if q.err != nil {
		badRequest(w, "%v", q.err)
		return
	}
	occs, err := h.Specs.Project(r.Context(), ownerFrom(r), id, until)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]OccurrenceDTO, len(occs))
	for i, o := range occs {
		out[i] = toOccurrenceDTO(o)
	}
	writeJSON(w, http.StatusOK, out)
}

// ---- categories ----

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.Categories.List(r.Context(), ownerFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]CategoryDTO, len(cats))
	for i, c := range cats {
		out[i] = toCategoryDTO(c)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CategoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	created, err := h.Categories.Create(r.Context(), core.Category{
		OwnerID:  ownerFrom(r),
		Name:     strings.TrimSpace(req.Name),
		Color:    strings.TrimSpace(req.Color),
		ParentID: req.ParentID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCategoryDTO(created))
}

func (h *Handler) ReparentCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req ReparentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	moved, err := h.Categories.Reparent(r.Context(), ownerFrom(r), id, req.ParentID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCategoryDTO(moved))
}

func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	res, err := h.Categories.Delete(r.Context(), ownerFrom(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCategoryDeletionDTO(res))
}

// ---- accounts and tags ----

func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accs, err := h.Accounts.List(r.Context(), ownerFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]AccountDTO, len(accs))
	for i, a := range accs {
		out[i] = toAccountDTO(a)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req AccountRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	initial, err := parseSignedAmount("http.account", req.InitialBalance)
	if err != nil {
		writeError(w, r, err)
		return
	}
	created, err := h.Accounts.Create(r.Context(), core.Account{
		OwnerID:        ownerFrom(r),
		Name:           strings.TrimSpace(req.Name),
		Kind:           core.AccountKind(strings.TrimSpace(req.Kind)),
		InitialBalance: initial,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountDTO(created))
}

func (h *Handler) SetAccountActive(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req ActiveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	acc, err := h.Accounts.SetActive(r.Context(), ownerFrom(r), id, req.Active)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountDTO(acc))
}

func (h *Handler) RecomputeAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	acc, err := h.Accounts.Recompute(r.Context(), ownerFrom(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountDTO(acc))
}

func (h *Handler) ListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.Tags.List(r.Context(), ownerFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]TagDTO, len(tags))
	for i, t := range tags {
		out[i] = toTagDTO(t)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) CreateTag(w http.ResponseWriter, r *http.Request) {
	var req TagRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	created, err := h.Tags.Create(r.Context(), core.Tag{
		OwnerID: ownerFrom(r),
		Name:    req.Name,
		Color:   strings.TrimSpace(req.Color),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTagDTO(created))
}

// ---- reports ----

func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	q := &queryParams{r: r}
	req := services.ReportRequest{
		From:           q.date("from"),
		To:             q.date("to"),
		AccountID:      q.id("account"),
		RootCategoryID: q.id("root"),
		Kind:           q.kind("kind"),
		HorizonMonths:  q.numPtr("horizon"),
	}
	if q.err == nil && (req.From.IsZero() || req.To.IsZero()) {
		badRequest(w, "from and to are required")
		return
	}
	if q.err != nil {
		badRequest(w, "%v", q.err)
		return
	}

	report, err := h.Reports.Report(r.Context(), ownerFrom(r), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toReportDTO(report))
}
