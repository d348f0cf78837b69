package handler

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/mcoot/boardgame-groups/internal/api/request"
	"github.com/mcoot/boardgame-groups/internal/api/response"
	"github.com/mcoot/boardgame-groups/internal/bgg"
	"github.com/mcoot/boardgame-groups/internal/services/catalog"
)

// CatalogHandler handles the game catalog and BoardGameGeek endpoints
type CatalogHandler struct {
	catalogService *catalog.Service
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(catalogService *catalog.Service) *CatalogHandler {
	return &CatalogHandler{
		catalogService: catalogService,
	}
}

// List handles GET /api/v1/games
func (h *CatalogHandler) List(w http.ResponseWriter, r *http.Request) {
	games, err := h.catalogService.List(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.GamesFromModel(games))
}

// Get handles GET /api/v1/games/{ident}
func (h *CatalogHandler) Get(w http.ResponseWriter, r *http.Request) {
	game, err := h.catalogService.Get(r.Context(), mux.Vars(r)["ident"])
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.GameFromModel(game))
}

// Search handles GET /api/v1/games/search/{name}
func (h *CatalogHandler) Search(w http.ResponseWriter, r *http.Request) {
	games, err := h.catalogService.Search(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.GamesFromModel(games))
}

// Create handles POST /api/v1/games
func (h *CatalogHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req request.GameRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		WriteError(w, err)
		return
	}

	game, err := h.catalogService.Create(r.Context(), req.ToModel())
	if err != nil {
		WriteError(w, err)
		return
	}

	response.Created(w, response.GameFromModel(game), "games", string(game.ID))
}

// Delete handles DELETE /api/v1/games/{ident}
func (h *CatalogHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.catalogService.Delete(r.Context(), mux.Vars(r)["ident"]); err != nil {
		WriteError(w, err)
		return
	}

	response.NoContent(w)
}

// FetchExternal handles GET /api/v1/bgg/games/{name}
func (h *CatalogHandler) FetchExternal(w http.ResponseWriter, r *http.Request) {
	game, err := h.catalogService.FetchExternal(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.GameFromModel(game))
}

// SearchExternal handles GET /api/v1/bgg/search/{name}
func (h *CatalogHandler) SearchExternal(w http.ResponseWriter, r *http.Request) {
	results, err := h.catalogService.SearchExternal(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		WriteError(w, err)
		return
	}
	if results == nil {
		results = []bgg.SearchResult{}
	}

	response.JSON(w, http.StatusOK, results)
}

// Import handles POST /api/v1/bgg/import
func (h *CatalogHandler) Import(w http.ResponseWriter, r *http.Request) {
	var req request.ImportRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		WriteError(w, err)
		return
	}

	if strings.TrimSpace(req.Name) == "" {
		WriteError(w, NewInvalidRequestError("name is required"))
		return
	}

	game, err := h.catalogService.Import(r.Context(), req.Name)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.Created(w, response.GameFromModel(game), "games", string(game.ID))
}
