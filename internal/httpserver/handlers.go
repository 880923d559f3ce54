package httpserver

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"medusa-storefront/internal/domain"
	cartsvc "medusa-storefront/internal/service/cart"
	"medusa-storefront/internal/service/checkout"
	"medusa-storefront/internal/session"
)

type cartService interface {
	Get(ctx context.Context, cartID string) (*domain.Cart, error)
	Create(ctx context.Context) (*domain.Cart, error)
	Update(ctx context.Context, cartID string, in cartsvc.UpdateInput) (*domain.Cart, error)
	AddItem(ctx context.Context, cartID, variantID string, quantity int) (*domain.Cart, error)
	UpdateItem(ctx context.Context, cartID, lineItemID string, quantity int) (*domain.Cart, error)
	RemoveItem(ctx context.Context, cartID, lineItemID string) (*domain.Cart, error)
}

type checkoutService interface {
	Load(ctx context.Context, sess *session.Session, cartID string) (*checkout.View, error)
	Submit(ctx context.Context, sess *session.Session, in checkout.SubmitInput) (*checkout.Result, error)
	Confirm(ctx context.Context, sess *session.Session, in checkout.ConfirmInput) (*checkout.Result, error)
	Order(ctx context.Context, sess *session.Session, orderID string) (*domain.Order, error)
}

type productService interface {
	List(ctx context.Context) ([]domain.Product, error)
	GetByHandle(ctx context.Context, handle string) (*domain.Product, error)
}

type handlers struct {
	carts    cartService
	checkout checkoutService
	products productService
	logger   *zap.Logger
}

type cartResponse struct {
	Cart        *domain.Cart `json:"cart"`
	DigitalOnly bool         `json:"digitalOnly"`
	Free        bool         `json:"free"`
}

func newCartResponse(cart *domain.Cart) cartResponse {
	return cartResponse{Cart: cart, DigitalOnly: cart.IsDigitalOnly(), Free: cart.IsFree()}
}

type addItemRequest struct {
	VariantID string `json:"variantId" binding:"required"`
	Quantity  int    `json:"quantity"`
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

type updateAddressRequest struct {
	CartID string `json:"cartId"`
	cartsvc.UpdateInput
}

// sessionCartID prefers an explicit ?cart_id= over the session pointer.
func sessionCartID(c *gin.Context, sess *session.Session) (string, error) {
	if id := strings.TrimSpace(c.Query("cart_id")); id != "" {
		return id, nil
	}
	id, err := sess.CartID(c.Request.Context())
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", domain.NewNotFoundError("No cart found")
	}
	return id, nil
}

func (h *handlers) createCart(c *gin.Context) {
	sess := currentSession(c)
	cart, err := h.carts.Create(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if err := sess.SetCartID(c.Request.Context(), cart.ID); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, newCartResponse(cart))
}

func (h *handlers) getCart(c *gin.Context) {
	cartID, err := sessionCartID(c, currentSession(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	cart, err := h.carts.Get(c.Request.Context(), cartID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, newCartResponse(cart))
}

func (h *handlers) addItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	ctx := c.Request.Context()
	sess := currentSession(c)

	cartID, err := sess.CartID(ctx)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if cartID == "" {
		cart, err := h.carts.Create(ctx)
		if err != nil {
			writeError(c, h.logger, err)
			return
		}
		cartID = cart.ID
		if err := sess.SetCartID(ctx, cartID); err != nil {
			writeError(c, h.logger, err)
			return
		}
	}

	cart, err := h.carts.AddItem(ctx, cartID, req.VariantID, req.Quantity)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, newCartResponse(cart))
}

func (h *handlers) updateItem(c *gin.Context) {
	var req updateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cartID, err := sessionCartID(c, currentSession(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	cart, err := h.carts.UpdateItem(c.Request.Context(), cartID, c.Param("id"), req.Quantity)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, newCartResponse(cart))
}

func (h *handlers) removeItem(c *gin.Context) {
	cartID, err := sessionCartID(c, currentSession(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	cart, err := h.carts.RemoveItem(c.Request.Context(), cartID, c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, newCartResponse(cart))
}

func (h *handlers) updateAddress(c *gin.Context) {
	var req updateAddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cartID := strings.TrimSpace(req.CartID)
	if cartID == "" {
		id, err := sessionCartID(c, currentSession(c))
		if err != nil {
			writeError(c, h.logger, err)
			return
		}
		cartID = id
	}
	cart, err := h.carts.Update(c.Request.Context(), cartID, req.UpdateInput)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, newCartResponse(cart))
}

func (h *handlers) loadCheckout(c *gin.Context) {
	view, err := h.checkout.Load(c.Request.Context(), currentSession(c), c.Query("cart_id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *handlers) submitCheckout(c *gin.Context) {
	var in checkout.SubmitInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.checkout.Submit(c.Request.Context(), currentSession(c), in)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handlers) confirmCheckout(c *gin.Context) {
	var in checkout.ConfirmInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.checkout.Confirm(c.Request.Context(), currentSession(c), in)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handlers) getOrder(c *gin.Context) {
	order, err := h.checkout.Order(c.Request.Context(), currentSession(c), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

func (h *handlers) listProducts(c *gin.Context) {
	products, err := h.products.List(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products, "count": len(products)})
}

func (h *handlers) getProduct(c *gin.Context) {
	p, err := h.products.GetByHandle(c.Request.Context(), c.Param("handle"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": p})
}
