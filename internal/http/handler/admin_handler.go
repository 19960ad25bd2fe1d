package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/CloudShare/internal/app/model"
	"github.com/sifan077/CloudShare/internal/app/service"
	"github.com/sifan077/CloudShare/internal/http/middleware"
	httpUtil "github.com/sifan077/CloudShare/internal/http/util"
	"go.uber.org/zap"
)

// AdminDeps groups dependencies required by the admin handlers.
type AdminDeps struct {
	Logger *zap.Logger
	Admin  service.AdminService
	Tokens *httpUtil.TokenSigner
	// Path is the secret path segment under /api, e.g. "admin".
	Path string
}

// AdminHandler implements the password-gated management API.
type AdminHandler struct {
	logger *zap.Logger
	admin  service.AdminService
	tokens *httpUtil.TokenSigner
	path   string
}

// NewAdminHandler creates an admin handler with the provided dependencies.
func NewAdminHandler(deps AdminDeps) *AdminHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	path := deps.Path
	if path == "" {
		path = "admin"
	}
	return &AdminHandler{
		logger: logger,
		admin:  deps.Admin,
		tokens: deps.Tokens,
		path:   path,
	}
}

// Register wires admin routes onto the provided router.
func (h *AdminHandler) Register(router fiber.Router) {
	admin := router.Group("/api/" + h.path)
	admin.Post("/login", h.Login)

	auth := middleware.AdminAuth(h.verify)
	admin.Get("/records", auth, h.Records)
	admin.Delete("/delete/:id", auth, h.Delete)
	admin.Get("/download/:id", auth, h.Download)
	admin.Get("/events/:id", auth, h.Events)
}

// verify accepts either the admin password itself or a session token issued
// by Login.
func (h *AdminHandler) verify(credential string) bool {
	if h.tokens != nil && httpUtil.Looks(credential) {
		return h.tokens.Validate(credential) == nil
	}
	return h.admin.Authenticate(credential) == nil
}

type loginRequest struct {
	Password string `json:"password"`
}

// Login handles POST /api/:admin/login.
func (h *AdminHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	}

	if err := h.admin.Authenticate(req.Password); err != nil {
		h.logger.Warn("admin login failed", zap.String("ip", c.IP()))
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid password"})
	}

	resp := fiber.Map{"success": true}
	if h.tokens != nil {
		token, err := h.tokens.Issue()
		if err != nil {
			return jsonError(c, h.logger, err)
		}
		resp["token"] = token
	}
	return c.JSON(resp)
}

// Records handles GET /api/:admin/records.
func (h *AdminHandler) Records(c *fiber.Ctx) error {
	records, err := h.admin.List(c.UserContext())
	if err != nil {
		return jsonError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{"records": records})
}

// Delete handles DELETE /api/:admin/delete/:id.
func (h *AdminHandler) Delete(c *fiber.Ctx) error {
	if err := h.admin.Delete(c.UserContext(), c.Params("id")); err != nil {
		return jsonError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// Download handles GET /api/:admin/download/:id. Always an attachment, and
// never counted as an access.
func (h *AdminHandler) Download(c *fiber.Ctx) error {
	res, err := h.admin.Download(c.UserContext(), c.Params("id"))
	if err != nil {
		return contentError(c, h.logger, err, "File expired")
	}

	body, err := res.Bytes()
	if err != nil {
		return contentError(c, h.logger, err, "File expired")
	}

	writeContentHeaders(c, res.Record, true)
	return c.Send(body)
}

// Events handles GET /api/:admin/events/:id, the archived access history.
func (h *AdminHandler) Events(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 100)
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	events, err := h.admin.AccessHistory(c.UserContext(), c.Params("id"), limit)
	if err != nil {
		return jsonError(c, h.logger, err)
	}
	if events == nil {
		events = []model.AccessEvent{}
	}
	return c.JSON(fiber.Map{"events": events})
}
