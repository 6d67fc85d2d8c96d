package handlers

import (
	"encoding/json"
	"mime/multipart"
	"strconv"
	"strings"

	"inventory/internal/middleware"
	"inventory/internal/services"
	"inventory/pkg/media"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ImageField is the multipart field carrying the optional product image.
const ImageField = "image"

// ProductHandler handles HTTP requests for the products of the session owner.
type ProductHandler struct {
	service  *services.ProductService
	validate *validator.Validate
	log      *zap.Logger
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(service *services.ProductService, log *zap.Logger) *ProductHandler {
	return &ProductHandler{
		service:  service,
		validate: newValidator(),
		log:      log.Named("product_handler"),
	}
}

// RegisterRoutes registers the product routes, all of them behind protected.
func (h *ProductHandler) RegisterRoutes(router fiber.Router, protected fiber.Handler) {
	productRoutes := router.Group("/products", protected)
	productRoutes.Post("/", h.HandleCreateProduct)
	productRoutes.Get("/", h.HandleGetProducts)
	productRoutes.Get("/:id", h.HandleGetProductByID)
	productRoutes.Delete("/:id", h.HandleDeleteProduct)
	productRoutes.Patch("/:id", h.HandleUpdateProduct)
}

// ProductRequest holds the raw product fields. Nil means the field was not sent.
// Numbers arrive as strings from forms and as JSON numbers or strings from JSON.
type ProductRequest struct {
	Name        *string      `json:"name" validate:"omitempty,max=255"`
	SKU         *string      `json:"sku" validate:"omitempty,max=100"`
	Category    *string      `json:"category" validate:"omitempty,max=100"`
	Quantity    *json.Number `json:"quantity"`
	Price       *json.Number `json:"price"`
	Description *string      `json:"description"`
}

// HandleCreateProduct creates a product, with an optional image upload.
func (h *ProductHandler) HandleCreateProduct(c *fiber.Ctx) error {
	in, image, err := h.readProduct(c)
	if err != nil {
		return err
	}
	if image != nil {
		defer closeImage(image)
	}

	product, err := h.service.Create(c.UserContext(), middleware.UserID(c), in, image)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(product)
}

// HandleGetProducts lists the products of the session owner, newest first.
func (h *ProductHandler) HandleGetProducts(c *fiber.Ctx) error {
	products, err := h.service.List(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"products": products})
}

// HandleGetProductByID retrieves a single product by its ID.
func (h *ProductHandler) HandleGetProductByID(c *fiber.Ctx) error {
	product, err := h.service.GetOne(c.UserContext(), middleware.UserID(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"product": product})
}

// HandleDeleteProduct deletes a product by its ID.
func (h *ProductHandler) HandleDeleteProduct(c *fiber.Ctx) error {
	if err := h.service.Delete(c.UserContext(), middleware.UserID(c), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Product deleted"})
}

// HandleUpdateProduct applies the sent fields and, if present, a new image.
func (h *ProductHandler) HandleUpdateProduct(c *fiber.Ctx) error {
	in, image, err := h.readProduct(c)
	if err != nil {
		return err
	}
	if image != nil {
		defer closeImage(image)
	}

	product, err := h.service.Update(c.UserContext(), middleware.UserID(c), c.Params("id"), in, image)
	if err != nil {
		return err
	}
	return c.JSON(product)
}

// readProduct accepts multipart forms (the only way to send an image),
// url-encoded forms and JSON bodies.
func (h *ProductHandler) readProduct(c *fiber.Ctx) (services.ProductInput, *media.File, error) {
	var (
		req   ProductRequest
		image *media.File
	)

	contentType := strings.ToLower(string(c.Request().Header.ContentType()))
	switch {
	case strings.HasPrefix(contentType, fiber.MIMEMultipartForm):
		form, err := c.MultipartForm()
		if err != nil {
			h.log.Debug("invalid multipart form", zap.Error(err))
			return services.ProductInput{}, nil, fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		req = requestFromValues(func(key string) (string, bool) {
			values, ok := form.Value[key]
			if !ok || len(values) == 0 {
				return "", false
			}
			return values[0], true
		})
		if files := form.File[ImageField]; len(files) > 0 {
			image, err = openImage(files[0])
			if err != nil {
				return services.ProductInput{}, nil, err
			}
		}
	case strings.HasPrefix(contentType, fiber.MIMEApplicationForm):
		args := c.Request().PostArgs()
		req = requestFromValues(func(key string) (string, bool) {
			if !args.Has(key) {
				return "", false
			}
			return string(args.Peek(key)), true
		})
	case len(c.Body()) == 0:
	default:
		if err := c.BodyParser(&req); err != nil {
			h.log.Debug("invalid request body", zap.Error(err))
			return services.ProductInput{}, nil, fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
	}

	if err := h.validate.Struct(req); err != nil {
		if image != nil {
			closeImage(image)
		}
		return services.ProductInput{}, nil, validationFailed(err)
	}

	in, err := req.toInput()
	if err != nil {
		if image != nil {
			closeImage(image)
		}
		return services.ProductInput{}, nil, err
	}
	return in, image, nil
}

func requestFromValues(lookup func(key string) (string, bool)) ProductRequest {
	str := func(key string) *string {
		if v, ok := lookup(key); ok {
			return &v
		}
		return nil
	}
	num := func(key string) *json.Number {
		if v, ok := lookup(key); ok {
			n := json.Number(strings.TrimSpace(v))
			return &n
		}
		return nil
	}
	return ProductRequest{
		Name:        str("name"),
		SKU:         str("sku"),
		Category:    str("category"),
		Quantity:    num("quantity"),
		Price:       num("price"),
		Description: str("description"),
	}
}

func (r ProductRequest) toInput() (services.ProductInput, error) {
	in := services.ProductInput{
		Name:        r.Name,
		SKU:         r.SKU,
		Category:    r.Category,
		Description: r.Description,
	}

	// An empty number counts as not sent.
	if r.Quantity != nil && *r.Quantity != "" {
		q, err := strconv.Atoi(r.Quantity.String())
		if err != nil {
			return in, fiber.NewError(fiber.StatusBadRequest, "Quantity must be a whole number")
		}
		in.Quantity = &q
	}
	if r.Price != nil && *r.Price != "" {
		p, err := strconv.ParseFloat(r.Price.String(), 64)
		if err != nil {
			return in, fiber.NewError(fiber.StatusBadRequest, "Price must be a number")
		}
		in.Price = &p
	}
	return in, nil
}

func openImage(fh *multipart.FileHeader) (*media.File, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Image could not be read")
	}
	return &media.File{
		Name:        fh.Filename,
		ContentType: fh.Header.Get(fiber.HeaderContentType),
		Size:        fh.Size,
		Content:     f,
	}, nil
}

func closeImage(file *media.File) {
	if closer, ok := file.Content.(multipart.File); ok {
		_ = closer.Close()
	}
}
