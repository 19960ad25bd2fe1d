package handler

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"mime"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/CloudShare/config"
	"github.com/sifan077/CloudShare/internal/app/model"
	"github.com/sifan077/CloudShare/internal/app/service"
	"github.com/sifan077/CloudShare/internal/http/view"
	"go.uber.org/zap"
)

const (
	headerSubscriptionUserInfo = "subscription-userinfo"
	headerCountry              = "CF-IPCountry"
	headerCity                 = "CF-IPCity"
)

var timeNow = time.Now

// ShareDeps groups dependencies required by the public share handlers.
type ShareDeps struct {
	Logger *zap.Logger
	Shares service.ShareService
	Site   config.AppConfig
	// UploadLimiter runs in front of POST /api/upload when set.
	UploadLimiter fiber.Handler
}

// ShareHandler implements upload, retrieval and share page endpoints.
type ShareHandler struct {
	logger  *zap.Logger
	shares  service.ShareService
	site    config.AppConfig
	limiter fiber.Handler
}

// NewShareHandler creates a share handler with the provided dependencies.
func NewShareHandler(deps ShareDeps) *ShareHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	site := deps.Site
	if site.MaxUploadBytes <= 0 {
		site.MaxUploadBytes = config.DefaultMaxUploadBytes
	}
	return &ShareHandler{
		logger:  logger,
		shares:  deps.Shares,
		site:    site,
		limiter: deps.UploadLimiter,
	}
}

// Register wires share routes onto the provided router.
func (h *ShareHandler) Register(router fiber.Router) {
	api := router.Group("/api")
	{
		if h.limiter != nil {
			api.Post("/upload", h.limiter, h.Upload)
		} else {
			api.Post("/upload", h.Upload)
		}
		api.Get("/file/:id", h.Metadata)
		api.Get("/config", h.SiteConfig)
	}

	router.Get("/raw/:id", h.Raw)
	router.Get("/sub/:id", h.Subscription)
	router.Get("/s/:id", h.SharePage)
}

// uploadRequest is the JSON upload body. For type "file" Content is base64.
type uploadRequest struct {
	Type             string                  `json:"type"`
	Content          string                  `json:"content"`
	Filename         string                  `json:"filename"`
	ContentType      string                  `json:"contentType"`
	SubscriptionInfo *model.SubscriptionInfo `json:"subscriptionInfo"`
	BurnAfterRead    bool                    `json:"burnAfterRead"`
	ExpiresIn        *int                    `json:"expiresIn"`
	MaxDownloads     *int                    `json:"maxDownloads"`
	CustomSlug       string                  `json:"customSlug"`
}

// UploadResponse is returned by POST /api/upload.
type UploadResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Upload handles POST /api/upload (multipart/form-data or JSON).
func (h *ShareHandler) Upload(c *fiber.Ctx) error {
	var (
		input service.CreateInput
		err   error
	)
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		input, err = h.parseMultipart(c)
	} else {
		input, err = h.parseJSON(c)
	}
	if err != nil {
		return jsonError(c, h.logger, err)
	}

	res, err := h.shares.Create(c.UserContext(), input)
	if err != nil {
		return jsonError(c, h.logger, err)
	}

	return c.JSON(UploadResponse{ID: res.ID, URL: h.publicURL(res.URL)})
}

func (h *ShareHandler) parseMultipart(c *fiber.Ctx) (service.CreateInput, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return service.CreateInput{}, &service.ValidationError{Message: "No file", Err: err}
	}
	if fh.Size > h.site.MaxUploadBytes {
		return service.CreateInput{}, &service.ValidationError{Message: "Too large"}
	}

	f, err := fh.Open()
	if err != nil {
		return service.CreateInput{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.site.MaxUploadBytes+1))
	if err != nil {
		return service.CreateInput{}, err
	}

	input := service.CreateInput{
		Type:          model.RecordType(c.FormValue("type", string(model.TypeFile))),
		Filename:      fh.Filename,
		ContentType:   fh.Header.Get(fiber.HeaderContentType),
		BurnAfterRead: c.FormValue("burnAfterRead") == "true",
		CustomSlug:    c.FormValue("customSlug"),
	}
	if input.ExpiresInHours, err = formInt(c, "expiresIn"); err != nil {
		return service.CreateInput{}, err
	}
	if input.MaxDownloads, err = formInt(c, "maxDownloads"); err != nil {
		return service.CreateInput{}, err
	}
	if raw := c.FormValue("subscriptionInfo"); raw != "" {
		var info model.SubscriptionInfo
		// A malformed value is ignored rather than failing the upload.
		if json.Unmarshal([]byte(raw), &info) == nil {
			input.SubscriptionInfo = &info
		}
	}

	if input.Type == model.TypeFile {
		input.Data = data
	} else {
		input.Text = string(data)
	}
	return input, nil
}

func (h *ShareHandler) parseJSON(c *fiber.Ctx) (service.CreateInput, error) {
	var req uploadRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return service.CreateInput{}, &service.ValidationError{Message: "Invalid request", Err: err}
	}

	input := service.CreateInput{
		Type:             model.RecordType(req.Type),
		Filename:         req.Filename,
		ContentType:      req.ContentType,
		SubscriptionInfo: req.SubscriptionInfo,
		BurnAfterRead:    req.BurnAfterRead,
		CustomSlug:       req.CustomSlug,
	}
	if req.ExpiresIn != nil {
		input.ExpiresInHours = *req.ExpiresIn
	}
	if req.MaxDownloads != nil {
		input.MaxDownloads = *req.MaxDownloads
	}

	if input.Type == model.TypeFile {
		data, err := base64.StdEncoding.DecodeString(req.Content)
		if err != nil {
			return service.CreateInput{}, &service.ValidationError{Message: "File content must be base64", Err: err}
		}
		input.Data = data
	} else {
		input.Text = req.Content
	}
	return input, nil
}

func formInt(c *fiber.Ctx, key string) (int, error) {
	raw := strings.TrimSpace(c.FormValue(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &service.ValidationError{Message: key + " must be an integer", Err: err}
	}
	return n, nil
}

func (h *ShareHandler) publicURL(path string) string {
	if h.site.PublicBaseURL == "" {
		return path
	}
	return strings.TrimRight(h.site.PublicBaseURL, "/") + path
}

func accessInfo(c *fiber.Ctx) service.AccessInfo {
	return service.AccessInfo{
		IP:        c.IP(),
		UserAgent: c.Get(fiber.HeaderUserAgent),
		Country:   c.Get(headerCountry),
		City:      c.Get(headerCity),
	}
}

// Raw handles GET /raw/:id, the gated retrieval of files and text.
func (h *ShareHandler) Raw(c *fiber.Ctx) error {
	res, err := h.shares.Resolve(c.UserContext(), c.Params("id"), accessInfo(c))
	if err != nil {
		return contentError(c, h.logger, err, "File expired")
	}

	body, err := res.Bytes()
	if err != nil {
		return contentError(c, h.logger, err, "File expired")
	}

	writeContentHeaders(c, res.Record, false)
	return c.Send(body)
}

// Subscription handles GET /sub/:id, proxying the upstream subscription.
func (h *ShareHandler) Subscription(c *fiber.Ctx) error {
	res, err := h.shares.ResolveSubscription(c.UserContext(), c.Params("id"), accessInfo(c))
	if err != nil {
		return contentError(c, h.logger, err, "Subscription expired")
	}

	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	if res.UserInfo != "" {
		c.Set(headerSubscriptionUserInfo, res.UserInfo)
	}
	return c.Send(res.Body)
}

// Metadata handles GET /api/file/:id. It never changes the record.
func (h *ShareHandler) Metadata(c *fiber.Ctx) error {
	rec, err := h.shares.Metadata(c.UserContext(), c.Params("id"))
	if err != nil {
		return jsonError(c, h.logger, err)
	}
	return c.JSON(rec)
}

// SiteConfig handles GET /api/config.
func (h *ShareHandler) SiteConfig(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"siteName":    h.site.SiteName,
		"telegramBot": h.site.TelegramBot,
		"footerText":  h.site.FooterText,
	})
}

// SharePage handles GET /s/:id, a landing page that links to the content
// without consuming a download.
func (h *ShareHandler) SharePage(c *fiber.Ctx) error {
	rec, err := h.shares.Metadata(c.UserContext(), c.Params("id"))
	if err != nil {
		return contentError(c, h.logger, err, "File expired")
	}

	status := fiber.StatusOK
	if rec.IsExpired(timeNow()) {
		status = fiber.StatusGone
	}

	html, err := view.RenderSharePage(view.SharePageData{
		SiteName:      h.site.SiteName,
		FooterText:    h.site.FooterText,
		ID:            rec.ID,
		Type:          string(rec.Type),
		Filename:      rec.Filename,
		ContentType:   rec.ContentType,
		Size:          rec.Size,
		CreatedAt:     rec.CreatedAt,
		ExpiresAt:     rec.ExpiresAt,
		MaxDownloads:  rec.MaxDownloads,
		DownloadCount: rec.DownloadCount,
		BurnAfterRead: rec.BurnAfterRead,
		AccessURL:     service.AccessPath(rec),
	})
	if err != nil {
		h.logger.Error("failed to render share page", zap.String("id", rec.ID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).SendString("Internal Server Error")
	}

	return c.Status(status).Type("html", "utf-8").SendString(html)
}

// writeContentHeaders sets Content-Type and, for non-text content or when
// forced, an attachment Content-Disposition.
func writeContentHeaders(c *fiber.Ctx, rec *model.Record, forceAttachment bool) {
	contentType := rec.ContentType
	if contentType == "" {
		contentType = fiber.MIMEOctetStream
	}
	isText := strings.HasPrefix(contentType, "text/")
	if isText && !strings.Contains(contentType, "charset") {
		contentType += "; charset=utf-8"
	}
	c.Set(fiber.HeaderContentType, contentType)

	if !isText || forceAttachment {
		disposition := mime.FormatMediaType("attachment", map[string]string{"filename": rec.Filename})
		if disposition == "" {
			disposition = "attachment"
		}
		c.Set(fiber.HeaderContentDisposition, disposition)
	}
}
