package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"marketplace/internal/domain"
	"marketplace/internal/logging"
	"marketplace/internal/service"
)

type Server struct {
	engine *gin.Engine
	market *service.MarketPlaceService
}

func NewServer(market *service.MarketPlaceService, logger *zap.Logger) *Server {
	r := gin.New()
	r.Use(logging.GinLogger(logger), gin.Recovery())
	s := &Server{engine: r, market: market}
	s.registerRoutes()
	return s
}

func (s *Server) Engine() *gin.Engine { return s.engine }

func (s *Server) registerRoutes() {
	// Swagger UI
	s.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := s.engine.Group("/api/v1")
	{
		markets := v1.Group("/markets")
		markets.POST("", s.createMarket)
		markets.GET("", s.listMarkets)
		markets.GET(":id", s.getMarket)
		markets.POST(":id/products", s.stockProduct)
		markets.GET(":id/affordable", s.affordableProducts)
		markets.POST(":id/purchase", s.buyProducts)

		products := v1.Group("/products")
		products.POST("", s.createProduct)
		products.GET(":name", s.getProduct)
		products.GET(":name/cheapest-market", s.cheapestMarket)

		v1.POST("/batch/best-market", s.bestMarketForBatch)
	}
}

// reply отдаёт конверт сервиса со статусом по коду
func reply[T any](c *gin.Context, r service.Response[T]) {
	c.JSON(r.Code.HTTPStatus(), r)
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, service.Response[any]{Code: service.CodeBadRequest, Message: msg})
}

// Market handlers
type createMarketReq struct {
	Name    string `json:"name" binding:"required"`
	Address string `json:"address" binding:"required"`
}

// @Summary Create market
// @Tags markets
// @Accept json
// @Produce json
// @Param input body createMarketReq true "Market"
// @Success 201 {object} service.Response[string]
// @Failure 400 {object} service.Response[any]
// @Router /markets [post]
func (s *Server) createMarket(c *gin.Context) {
	var req createMarketReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	r := s.market.AddMarket(c.Request.Context(), req.Name, req.Address)
	if r.OK() {
		c.JSON(http.StatusCreated, r)
		return
	}
	reply(c, r)
}

// @Summary List markets
// @Tags markets
// @Produce json
// @Success 200 {object} service.Response[[]domain.Market]
// @Router /markets [get]
func (s *Server) listMarkets(c *gin.Context) {
	reply(c, s.market.ListMarkets(c.Request.Context()))
}

// @Summary Get market by id
// @Tags markets
// @Produce json
// @Param id path string true "Market ID"
// @Success 200 {object} service.Response[domain.Market]
// @Failure 400 {object} service.Response[any]
// @Failure 404 {object} service.Response[any]
// @Router /markets/{id} [get]
func (s *Server) getMarket(c *gin.Context) {
	reply(c, s.market.GetMarketByID(c.Request.Context(), c.Param("id")))
}

type stockProductReq struct {
	ProductName string          `json:"product_name" binding:"required"`
	Amount      int             `json:"amount"`
	Price       decimal.Decimal `json:"price" swaggertype:"string" example:"2.50"`
}

// @Summary Add product to market
// @Description Creates the stock line or adds to its amount; price replaces the current one.
// @Tags markets
// @Accept json
// @Produce json
// @Param id path string true "Market ID"
// @Param input body stockProductReq true "Stock"
// @Success 200 {object} service.Response[string]
// @Failure 400 {object} service.Response[any]
// @Failure 404 {object} service.Response[any]
// @Router /markets/{id}/products [post]
func (s *Server) stockProduct(c *gin.Context) {
	var req stockProductReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	reply(c, s.market.AddProductToMarket(c.Request.Context(), c.Param("id"), req.ProductName, req.Amount, req.Price))
}

// @Summary Affordable products
// @Description Max amount of every product purchasable when the whole budget is spent on it alone.
// @Tags markets
// @Produce json
// @Param id path string true "Market ID"
// @Param budget query number true "Budget"
// @Success 200 {object} service.Response[map[string]int]
// @Failure 400 {object} service.Response[any]
// @Failure 404 {object} service.Response[any]
// @Router /markets/{id}/affordable [get]
func (s *Server) affordableProducts(c *gin.Context) {
	budget, err := decimal.NewFromString(c.Query("budget"))
	if err != nil {
		badRequest(c, "invalid budget")
		return
	}
	reply(c, s.market.AffordableProducts(c.Request.Context(), c.Param("id"), budget))
}

type purchaseReq struct {
	Items []domain.PurchaseItem `json:"items" binding:"required,dive"`
}

// @Summary Buy products
// @Tags markets
// @Accept json
// @Produce json
// @Param id path string true "Market ID"
// @Param input body purchaseReq true "Items"
// @Success 200 {object} service.Response[decimal.Decimal] "data: total price, decimal string"
// @Failure 400 {object} service.Response[any]
// @Failure 404 {object} service.Response[any]
// @Router /markets/{id}/purchase [post]
func (s *Server) buyProducts(c *gin.Context) {
	var req purchaseReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	reply(c, s.market.BuyProducts(c.Request.Context(), c.Param("id"), req.Items))
}

// Product handlers
type createProductReq struct {
	Name string `json:"name" binding:"required"`
}

// @Summary Create product
// @Tags products
// @Accept json
// @Produce json
// @Param input body createProductReq true "Product"
// @Success 201 {object} service.Response[string]
// @Failure 400 {object} service.Response[any]
// @Failure 409 {object} service.Response[any]
// @Router /products [post]
func (s *Server) createProduct(c *gin.Context) {
	var req createProductReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	r := s.market.AddProduct(c.Request.Context(), req.Name)
	if r.OK() {
		c.JSON(http.StatusCreated, r)
		return
	}
	reply(c, r)
}

// @Summary Get product by name
// @Tags products
// @Produce json
// @Param name path string true "Product name"
// @Success 200 {object} service.Response[domain.Product]
// @Failure 404 {object} service.Response[any]
// @Router /products/{name} [get]
func (s *Server) getProduct(c *gin.Context) {
	reply(c, s.market.GetProductByName(c.Request.Context(), c.Param("name")))
}

// @Summary Cheapest market for product
// @Tags products
// @Produce json
// @Param name path string true "Product name"
// @Success 200 {object} service.Response[domain.Market]
// @Failure 404 {object} service.Response[any]
// @Router /products/{name}/cheapest-market [get]
func (s *Server) cheapestMarket(c *gin.Context) {
	reply(c, s.market.CheapestMarketForProduct(c.Request.Context(), c.Param("name")))
}

// @Summary Best market for batch
// @Description Market with the lowest total price that can fulfill the whole batch.
// @Tags batch
// @Accept json
// @Produce json
// @Param input body purchaseReq true "Items"
// @Success 200 {object} service.Response[domain.Market]
// @Failure 400 {object} service.Response[any]
// @Failure 404 {object} service.Response[any]
// @Router /batch/best-market [post]
func (s *Server) bestMarketForBatch(c *gin.Context) {
	var req purchaseReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	reply(c, s.market.BestMarketForBatch(c.Request.Context(), req.Items))
}
