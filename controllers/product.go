package controllers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"plantify/apperr"
	"plantify/logger"
	"plantify/media"
	"plantify/models"
	"plantify/store"
	"plantify/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// ProductCatalog is the product store used by the catalog handlers
type ProductCatalog interface {
	Create(ctx context.Context, p *models.Product) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error)
	List(ctx context.Context, f store.ProductFilter) ([]models.Product, error)
	Update(ctx context.Context, id primitive.ObjectID, changes store.ProductChanges) (*models.Product, error)
	UpsertRating(ctx context.Context, id primitive.ObjectID, rating models.Rating) (*models.Product, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// UserFinder resolves sellers for product views
type UserFinder interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

// ProductController handles product-related requests
type ProductController struct {
	products ProductCatalog
	users    UserFinder
	uploader media.Uploader
	validate *utils.Validator
	tempDir  string
}

// NewProductController creates a new ProductController
func NewProductController(products ProductCatalog, users UserFinder, uploader media.Uploader, validate *utils.Validator, tempDir string) *ProductController {
	return &ProductController{
		products: products,
		users:    users,
		uploader: uploader,
		validate: validate,
		tempDir:  tempDir,
	}
}

type productRequest struct {
	Name        string          `json:"name" validate:"required,min=2,max=100"`
	Description string          `json:"description" validate:"required,min=10,max=2000"`
	Category    models.Category `json:"category" validate:"required,oneof=fertilizer seed plant tool accessory"`
	Price       float64         `json:"price" validate:"gte=0,price2dp"`
	Stock       int             `json:"stock" validate:"gte=0"`
}

type productPatch struct {
	Name        *string          `json:"name" validate:"omitempty,min=2,max=100"`
	Description *string          `json:"description" validate:"omitempty,min=10,max=2000"`
	Category    *models.Category `json:"category" validate:"omitempty,oneof=fertilizer seed plant tool accessory"`
	Price       *float64         `json:"price" validate:"omitempty,gte=0,price2dp"`
	Stock       *int             `json:"stock" validate:"omitempty,gte=0"`
}

// changes converts the patch into the store's partial update
func (p productPatch) changes(images []string) store.ProductChanges {
	trim := func(v *string) *string {
		if v == nil {
			return nil
		}
		t := strings.TrimSpace(*v)
		return &t
	}
	return store.ProductChanges{
		Name:        trim(p.Name),
		Description: trim(p.Description),
		Category:    p.Category,
		Price:       p.Price,
		Stock:       p.Stock,
		Images:      images,
	}
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

// readProductPatch reads product fields from a multipart form or a JSON body.
// For multipart requests the posted images are saved to temp files.
func (pc *ProductController) readProductPatch(w http.ResponseWriter, r *http.Request) (productPatch, []string, error) {
	var patch productPatch
	if !isMultipart(r) {
		err := utils.DecodeJSON(r, &patch)
		return patch, nil, err
	}

	paths, err := media.SaveImages(w, r, "images", pc.tempDir, media.MaxProductImages)
	if err != nil {
		return patch, nil, err
	}
	str := func(key string) *string {
		if vs, ok := r.MultipartForm.Value[key]; ok && len(vs) > 0 {
			return &vs[0]
		}
		return nil
	}
	patch.Name = str("name")
	patch.Description = str("description")
	if c := str("category"); c != nil {
		cat := models.Category(strings.ToLower(strings.TrimSpace(*c)))
		patch.Category = &cat
	}
	if s := str("price"); s != nil {
		price, err := strconv.ParseFloat(strings.TrimSpace(*s), 64)
		if err != nil {
			media.RemoveAll(paths)
			return patch, nil, apperr.Validation("price: must be a number")
		}
		patch.Price = &price
	}
	if s := str("stock"); s != nil {
		stock, err := strconv.Atoi(strings.TrimSpace(*s))
		if err != nil {
			media.RemoveAll(paths)
			return patch, nil, apperr.Validation("stock: must be a whole number")
		}
		patch.Stock = &stock
	}
	return patch, paths, nil
}

// uploadImages hands every temp file to the uploader. On failure the
// remaining temp files and the already stored images are cleaned up.
func (pc *ProductController) uploadImages(ctx context.Context, paths []string) ([]string, error) {
	urls := make([]string, 0, len(paths))
	stored := make([]string, 0, len(paths))
	for i, path := range paths {
		asset, err := pc.uploader.Upload(ctx, path, "products")
		if err != nil {
			media.RemoveAll(paths[i+1:])
			for _, id := range stored {
				if derr := pc.uploader.Delete(ctx, id); derr != nil {
					logger.FromContext(ctx).Warn("failed to delete orphaned image", zap.String("id", id), zap.Error(derr))
				}
			}
			return nil, err
		}
		urls = append(urls, asset.URL)
		stored = append(stored, asset.ID)
	}
	return urls, nil
}

// CreateProduct handles adding a new listing (seller or admin)
func (pc *ProductController) CreateProduct(w http.ResponseWriter, r *http.Request) {
	seller, err := requireUser(r)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}

	patch, paths, err := pc.readProductPatch(w, r)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	req := productRequest{}
	if patch.Name != nil {
		req.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		req.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Category != nil {
		req.Category = *patch.Category
	}
	if patch.Price != nil {
		req.Price = *patch.Price
	}
	if patch.Stock != nil {
		req.Stock = *patch.Stock
	}
	if err := pc.validate.Struct(req); err != nil {
		media.RemoveAll(paths)
		utils.WriteError(w, r, err)
		return
	}

	images, err := pc.uploadImages(r.Context(), paths)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	if len(images) == 0 {
		images = []string{models.DefaultProductImage}
	}

	now := time.Now().UTC()
	product := &models.Product{
		SellerID:    seller.ID,
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Price:       req.Price,
		Stock:       req.Stock,
		Images:      images,
		Ratings:     []models.Rating{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := pc.products.Create(r.Context(), product); err != nil {
		if apperr.KindOf(err) == apperr.KindConflict {
			err = apperr.Conflict("You already have a product with the same name and category.")
		}
		utils.WriteError(w, r, err)
		return
	}

	utils.WriteSuccess(w, http.StatusCreated, "Product created successfully", utils.Envelope{
		"product": models.NewProductView(product, nil),
	})
}

// GetProducts lists the catalog, optionally filtered by ?category=
func (pc *ProductController) GetProducts(w http.ResponseWriter, r *http.Request) {
	filter := store.ProductFilter{}
	if c := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("category"))); c != "" {
		filter.Category = models.Category(c)
		if !filter.Category.IsValid() {
			utils.WriteError(w, r, apperr.Validation("Unknown category "+c))
			return
		}
	}
	pc.writeList(w, r, filter)
}

// GetSellerProducts lists the caller's own listings
func (pc *ProductController) GetSellerProducts(w http.ResponseWriter, r *http.Request) {
	seller, err := requireUser(r)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	pc.writeList(w, r, store.ProductFilter{SellerID: seller.ID})
}

// GetAllProductsAdmin lists every listing (admin)
func (pc *ProductController) GetAllProductsAdmin(w http.ResponseWriter, r *http.Request) {
	pc.writeList(w, r, store.ProductFilter{})
}

func (pc *ProductController) writeList(w http.ResponseWriter, r *http.Request, filter store.ProductFilter) {
	products, err := pc.products.List(r.Context(), filter)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}

	sellers := make(map[primitive.ObjectID]*models.User)
	views := make([]models.ProductView, 0, len(products))
	for i := range products {
		p := &products[i]
		seller, ok := sellers[p.SellerID]
		if !ok {
			seller, _ = pc.users.FindByID(r.Context(), p.SellerID)
			sellers[p.SellerID] = seller
		}
		views = append(views, models.NewProductView(p, seller))
	}
	utils.WriteSuccess(w, http.StatusOK, "", utils.Envelope{"products": views})
}

// GetProductByID retrieves a single product with its seller
func (pc *ProductController) GetProductByID(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "product")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	product, err := pc.products.FindByID(r.Context(), id)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	seller, err := pc.users.FindByID(r.Context(), product.SellerID)
	if err != nil && apperr.KindOf(err) != apperr.KindNotFound {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "", utils.Envelope{"product": models.NewProductView(product, seller)})
}

// ownedProduct loads the product in the route and checks the caller owns it
func (pc *ProductController) ownedProduct(r *http.Request, action string) (*models.Product, error) {
	user, err := requireUser(r)
	if err != nil {
		return nil, err
	}
	id, err := pathID(r, "id", "product")
	if err != nil {
		return nil, err
	}
	product, err := pc.products.FindByID(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if product.SellerID != user.ID {
		return nil, apperr.Forbidden("Not authorized to " + action + " this product")
	}
	return product, nil
}

// UpdateProduct sets the provided fields; new images replace the old ones
func (pc *ProductController) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	product, err := pc.ownedProduct(r, "update")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}

	patch, paths, err := pc.readProductPatch(w, r)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	if err := pc.validate.Struct(patch); err != nil {
		media.RemoveAll(paths)
		utils.WriteError(w, r, err)
		return
	}

	images, err := pc.uploadImages(r.Context(), paths)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	updated, err := pc.products.Update(r.Context(), product.ID, patch.changes(images))
	if err != nil {
		if apperr.KindOf(err) == apperr.KindConflict {
			err = apperr.Conflict("You already have a product with the same name and category.")
		}
		utils.WriteError(w, r, err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "Product updated successfully", utils.Envelope{
		"product": models.NewProductView(updated, nil),
	})
}

// DeleteProduct removes a listing (owner only)
func (pc *ProductController) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	product, err := pc.ownedProduct(r, "delete")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	if err := pc.products.Delete(r.Context(), product.ID); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Product deleted successfully", nil)
}

type ratingRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=500"`
}

// RateProduct records the caller's rating; rating again replaces it
func (pc *ProductController) RateProduct(w http.ResponseWriter, r *http.Request) {
	user, err := requireUser(r)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	id, err := pathID(r, "id", "product")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	var req ratingRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	if err := pc.validate.Struct(req); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	product, err := pc.products.FindByID(r.Context(), id)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	if product.SellerID == user.ID {
		utils.WriteError(w, r, apperr.Forbidden("You cannot rate your own product"))
		return
	}
	rated, err := pc.products.UpsertRating(r.Context(), product.ID, models.Rating{
		UserID:    user.ID,
		Rating:    req.Rating,
		Comment:   strings.TrimSpace(req.Comment),
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "Rating saved", utils.Envelope{
		"product": models.NewProductView(rated, nil),
	})
}
