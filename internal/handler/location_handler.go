package handler

import (
	"errors"
	"io"
	"mime/multipart"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/waypointhq/waypoint/internal/domain"
	"github.com/waypointhq/waypoint/internal/middleware"
)

// LocationHandler handles HTTP requests for location operations
type LocationHandler struct {
	locationService domain.LocationService
}

// NewLocationHandler creates a new location handler
func NewLocationHandler(locationService domain.LocationService) *LocationHandler {
	return &LocationHandler{
		locationService: locationService,
	}
}

// CreateLocation handles POST /v1/locations (multipart form, optional image file)
func (h *LocationHandler) CreateLocation(c *fiber.Ctx) error {
	ownerID := middleware.GetUserID(c)
	if ownerID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"error":   "user not authenticated",
		})
	}

	input := domain.CreateLocationInput{
		Name:        c.FormValue("name"),
		Description: c.FormValue("description"),
		Address:     c.FormValue("address"),
		ImageURL:    c.FormValue("image_url"),
	}

	upload, err := uploadFromRequest(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}

	defer closeUpload(upload)

	loc, err := h.locationService.Create(c.Context(), ownerID, input, upload)
	if err != nil {
		return serviceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    loc,
	})
}

// ListLocations handles GET /v1/locations
func (h *LocationHandler) ListLocations(c *fiber.Ctx) error {
	ownerID := middleware.GetUserID(c)
	if ownerID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"error":   "user not authenticated",
		})
	}

	page, _ := strconv.Atoi(c.Query("page", "1"))
	perPage, _ := strconv.Atoi(c.Query("per_page", "20"))

	locations, total, err := h.locationService.List(c.Context(), ownerID, page, perPage)
	if err != nil {
		return serviceError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"data":    locations,
		"total":   total,
	})
}

// GetLocation handles GET /v1/locations/:id
func (h *LocationHandler) GetLocation(c *fiber.Ctx) error {
	ownerID := middleware.GetUserID(c)
	if ownerID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"error":   "user not authenticated",
		})
	}

	loc, err := h.locationService.Get(c.Context(), c.Params("id"), ownerID)
	if err != nil {
		return serviceError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"data":    loc,
	})
}

// UpdateLocation handles PATCH /v1/locations/:id (multipart form, optional image file)
func (h *LocationHandler) UpdateLocation(c *fiber.Ctx) error {
	ownerID := middleware.GetUserID(c)
	if ownerID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"error":   "user not authenticated",
		})
	}

	input, err := updateInputFromForm(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}

	upload, err := uploadFromRequest(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}

	defer closeUpload(upload)

	loc, err := h.locationService.Update(c.Context(), c.Params("id"), ownerID, input, upload)
	if err != nil {
		return serviceError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"data":    loc,
	})
}

// DeleteLocation handles DELETE /v1/locations/:id
func (h *LocationHandler) DeleteLocation(c *fiber.Ctx) error {
	ownerID := middleware.GetUserID(c)
	if ownerID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"error":   "user not authenticated",
		})
	}

	if err := h.locationService.Delete(c.Context(), c.Params("id"), ownerID); err != nil {
		return serviceError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
	})
}

// updateInputFromForm builds a partial-update input; only fields present in
// the form are applied.
func updateInputFromForm(c *fiber.Ctx) (domain.UpdateLocationInput, error) {
	input := domain.UpdateLocationInput{}

	form, err := c.MultipartForm()
	if err != nil {
		return input, errors.New("invalid multipart form: " + err.Error())
	}

	if v, ok := formField(form, "name"); ok {
		input.Name = &v
	}
	if v, ok := formField(form, "description"); ok {
		input.Description = &v
	}
	if v, ok := formField(form, "address"); ok {
		input.Address = &v
	}
	if v, ok := formField(form, "image_url"); ok {
		input.ImageURL = &v
	}
	if v, ok := formField(form, "keep_image"); ok {
		keep := v != "false"
		input.KeepImage = &keep
	}

	return input, nil
}

func formField(form *multipart.Form, name string) (string, bool) {
	values, ok := form.Value[name]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// uploadFromRequest extracts the optional "image" file from the multipart
// form. It returns (nil, nil) when no file was sent. Validation of size and
// content type is the object store's job, not the handler's.
func uploadFromRequest(c *fiber.Ctx) (*domain.FileUpload, error) {
	fileHeader, err := c.FormFile("image")
	if errors.Is(err, fasthttp.ErrMissingFile) || errors.Is(err, fasthttp.ErrNoMultipartForm) {
		// No file part present.
		return nil, nil
	}
	if err != nil {
		return nil, errors.New("malformed image upload: " + err.Error())
	}

	fileHandle, err := fileHeader.Open()
	if err != nil {
		return nil, errors.New("failed to open uploaded file")
	}

	return &domain.FileUpload{
		Content:     fileHandle,
		Size:        fileHeader.Size,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Filename:    fileHeader.Filename,
	}, nil
}

func closeUpload(upload *domain.FileUpload) {
	if upload == nil {
		return
	}
	if closer, ok := upload.Content.(io.Closer); ok {
		_ = closer.Close()
	}
}

// serviceError maps the service error taxonomy to transport status codes.
func serviceError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		status = fiber.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, domain.ErrForbidden):
		status = fiber.StatusForbidden
	case errors.Is(err, domain.ErrTooLarge):
		status = fiber.StatusRequestEntityTooLarge
	case errors.Is(err, domain.ErrUnsupportedType):
		status = fiber.StatusUnsupportedMediaType
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		status = fiber.StatusBadGateway
	}

	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   err.Error(),
	})
}
