package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/wicaksono/tokopos/internal/config"
	"github.com/wicaksono/tokopos/internal/database"
	"github.com/wicaksono/tokopos/internal/ledger"
	"github.com/wicaksono/tokopos/internal/store"
	"github.com/wicaksono/tokopos/pkg/validator"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Init logger: %v", err)
	}
	defer logger.Sync()

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		logger.Fatal("Could not connect to database", zap.Error(err))
	}
	defer db.Close()

	logger.Info("Connected to database")

	mux := http.NewServeMux()

	mux.HandleFunc("/products", handleProducts(db, logger))
	mux.HandleFunc("/products/", handleProductBySKU(db, logger))
	mux.HandleFunc("/stockin", handleStockIn(db, logger))
	mux.HandleFunc("/checkout", handleCheckout(db, logger))
	mux.HandleFunc("/sales/manual", handleManualSale(db, logger))
	mux.HandleFunc("/sales/", handleSaleByID(db, logger))
	mux.HandleFunc("/ledger", handleLedger(db, logger))
	mux.HandleFunc("/dashboard", handleDashboard(db, logger))
	mux.HandleFunc("/resellers", handleResellers(db, logger))
	mux.HandleFunc("/resellers/inventory", handleResellerInventory(db, logger))

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	logger.Info("Server starting", zap.String("port", cfg.Server.Port))
	if err := server.ListenAndServe(); err != nil {
		logger.Fatal("Server error", zap.Error(err))
	}
}

type productRequest struct {
	SKU           string `json:"sku" validate:"required"`
	Name          string `json:"name" validate:"required"`
	Unit          string `json:"unit"`
	RetailPrice   string `json:"retail_price"`
	ResellerPrice string `json:"reseller_price"`
	MinLevel      int    `json:"min_level" validate:"gte=0"`
	Notes         string `json:"notes"`
}

func handleProducts(db *sql.DB, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		switch r.Method {
		case http.MethodPost:
			var req productRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				respondError(w, http.StatusBadRequest, "Invalid request body")
				return
			}
			if errs := validator.ValidateStruct(req); len(errs) > 0 {
				respondError(w, http.StatusBadRequest, validator.Message(errs))
				return
			}

			retail, err := parseDecimal(req.RetailPrice, "retail_price")
			if err != nil {
				respondStoreError(w, logger, err)
				return
			}
			reseller, err := parseDecimal(req.ResellerPrice, "reseller_price")
			if err != nil {
				respondStoreError(w, logger, err)
				return
			}

			product, err := store.UpsertProduct(ctx, db, store.UpsertProductRequest{
				SKU:           req.SKU,
				Name:          req.Name,
				Unit:          req.Unit,
				RetailPrice:   retail,
				ResellerPrice: reseller,
				MinLevel:      req.MinLevel,
				Notes:         req.Notes,
			})
			if err != nil {
				respondStoreError(w, logger, err)
				return
			}

			respondJSON(w, http.StatusOK, product)

		case http.MethodGet:
			products, err := store.SearchProducts(ctx, db, r.URL.Query().Get("q"), 200)
			if err != nil {
				respondStoreError(w, logger, err)
				return
			}

			respondJSON(w, http.StatusOK, products)

		default:
			respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	}
}

func handleProductBySKU(db *sql.DB, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}

		sku := r.URL.Path[len("/products/"):]
		if sku == "" {
			respondError(w, http.StatusBadRequest, "Missing SKU")
			return
		}

		product, err := store.GetProductBySKU(r.Context(), db, sku)
		if err != nil {
			respondStoreError(w, logger, err)
			return
		}

		respondJSON(w, http.StatusOK, product)
	}
}

type stockInRequest struct {
	SKU              string  `json:"sku" validate:"required"`
	Qty              int     `json:"qty" validate:"required,gt=0"`
	CostPerUnit      *string `json:"cost_per_unit"`
	NewRetailPrice   *string `json:"new_retail_price"`
	NewResellerPrice *string `json:"new_reseller_price"`
}

func handleStockIn(db *sql.DB, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}

		var req stockInRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if errs := validator.ValidateStruct(req); len(errs) > 0 {
			respondError(w, http.StatusBadRequest, validator.Message(errs))
			return
		}

		cost, err := parseOptionalDecimal(req.CostPerUnit, "cost_per_unit")
		if err != nil {
			respondStoreError(w, logger, err)
			return
		}
		newRetail, err := parseOptionalDecimal(req.NewRetailPrice, "new_retail_price")
		if err != nil {
			respondStoreError(w, logger, err)
			return
		}
		newReseller, err := parseOptionalDecimal(req.NewResellerPrice, "new_reseller_price")
		if err != nil {
			respondStoreError(w, logger, err)
			return
		}

		receipt, err := store.ApplyStockIn(r.Context(), db, store.StockInRequest{
			SKU:              req.SKU,
			Qty:              req.Qty,
			CostPerUnit:      cost,
			NewRetailPrice:   newRetail,
			NewResellerPrice: newReseller,
		})
		if err != nil {
			respondStoreError(w, logger, err)
			return
		}

		logger.Info("Stock-in recorded",
			zap.String("sku", req.SKU),
			zap.Int("qty", req.Qty),
			zap.Int64("stock_in_id", receipt.ID))
		respondJSON(w, http.StatusCreated, receipt)
	}
}

type checkoutRequest struct {
	Cart map[string]int `json:"cart" validate:"required,min=1"`
}

func handleCheckout(db *sql.DB, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}

		var req checkoutRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if errs := validator.ValidateStruct(req); len(errs) > 0 {
			respondError(w, http.StatusBadRequest, validator.Message(errs))
			return
		}

		sale, err := store.Checkout(r.Context(), db, req.Cart)
		if err != nil {
			respondStoreError(w, logger, err)
			return
		}

		logger.Info("Checkout completed",
			zap.String("ref", sale.Ref),
			zap.Int("lines", len(sale.Items)),
			zap.String("total", sale.TotalAmount.String()))
		respondJSON(w, http.StatusCreated, sale)
	}
}

type manualSaleRequest struct {
	SKU   string  `json:"sku" validate:"required"`
	Qty   int     `json:"qty" validate:"required,gt=0"`
	Price *string `json:"price"`
}

func handleManualSale(db *sql.DB, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}

		var req manualSaleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if errs := validator.ValidateStruct(req); len(errs) > 0 {
			respondError(w, http.StatusBadRequest, validator.Message(errs))
			return
		}

		price, err := parseOptionalDecimal(req.Price, "price")
		if err != nil {
			respondStoreError(w, logger, err)
			return
		}

		sale, err := store.RecordManualSale(r.Context(), db, req.SKU, req.Qty, price)
		if err != nil {
			respondStoreError(w, logger, err)
			return
		}

		logger.Info("Manual sale recorded",
			zap.String("ref", sale.Ref),
			zap.String("sku", req.SKU),
			zap.String("total", sale.TotalAmount.String()))
		respondJSON(w, http.StatusCreated, sale)
	}
}

func handleSaleByID(db *sql.DB, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}

		idStr := r.URL.Path[len("/sales/"):]
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid sale ID")
			return
		}

		sale, err := store.GetSale(r.Context(), db, id)
		if err != nil {
			respondStoreError(w, logger, err)
			return
		}

		respondJSON(w, http.StatusOK, sale)
	}
}

func handleLedger(db *sql.DB, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}

		q := r.URL.Query()
		report, err := ledger.Build(r.Context(), db, ledger.Filter{
			DateFrom: q.Get("from"),
			DateTo:   q.Get("to"),
			Text:     q.Get("q"),
		})
		if err != nil {
			respondStoreError(w, logger, err)
			return
		}

		respondJSON(w, http.StatusOK, report)
	}
}

func handleDashboard(db *sql.DB, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}

		totals, err := store.GetDashboardTotals(r.Context(), db)
		if err != nil {
			respondStoreError(w, logger, err)
			return
		}

		respondJSON(w, http.StatusOK, totals)
	}
}

type resellerRequest struct {
	Name  string `json:"name" validate:"required"`
	Phone string `json:"phone"`
}

func handleResellers(db *sql.DB, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		switch r.Method {
		case http.MethodPost:
			var req resellerRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				respondError(w, http.StatusBadRequest, "Invalid request body")
				return
			}
			if errs := validator.ValidateStruct(req); len(errs) > 0 {
				respondError(w, http.StatusBadRequest, validator.Message(errs))
				return
			}

			reseller, err := store.CreateReseller(ctx, db, req.Name, req.Phone)
			if err != nil {
				respondStoreError(w, logger, err)
				return
			}

			respondJSON(w, http.StatusCreated, reseller)

		case http.MethodGet:
			resellers, err := store.ListResellers(ctx, db)
			if err != nil {
				respondStoreError(w, logger, err)
				return
			}

			respondJSON(w, http.StatusOK, resellers)

		default:
			respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	}
}

type resellerInventoryRequest struct {
	ResellerID int64  `json:"reseller_id" validate:"required,gt=0"`
	SKU        string `json:"sku" validate:"required"`
	Qty        int    `json:"qty" validate:"gte=0"`
	Price      string `json:"price"`
}

func handleResellerInventory(db *sql.DB, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		switch r.Method {
		case http.MethodPost:
			var req resellerInventoryRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				respondError(w, http.StatusBadRequest, "Invalid request body")
				return
			}
			if errs := validator.ValidateStruct(req); len(errs) > 0 {
				respondError(w, http.StatusBadRequest, validator.Message(errs))
				return
			}

			price, err := parseDecimal(req.Price, "price")
			if err != nil {
				respondStoreError(w, logger, err)
				return
			}

			row, err := store.UpsertResellerInventory(ctx, db, req.ResellerID, req.SKU, req.Qty, price)
			if err != nil {
				respondStoreError(w, logger, err)
				return
			}

			respondJSON(w, http.StatusOK, row)

		case http.MethodGet:
			resellerID, err := strconv.ParseInt(r.URL.Query().Get("reseller_id"), 10, 64)
			if err != nil {
				respondError(w, http.StatusBadRequest, "Invalid reseller_id")
				return
			}

			inventory, err := store.ListResellerInventory(ctx, db, resellerID)
			if err != nil {
				respondStoreError(w, logger, err)
				return
			}

			respondJSON(w, http.StatusOK, inventory)

		default:
			respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	}
}

// parseDecimal parses a required fixed-point amount; empty means zero.
// Amounts travel as strings so nothing ever round-trips through floats.
func parseDecimal(s, field string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s %q is not a valid decimal", database.ErrInvalidInput, field, s)
	}
	return d, nil
}

func parseOptionalDecimal(s *string, field string) (*decimal.Decimal, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %q is not a valid decimal", database.ErrInvalidInput, field, *s)
	}
	return &d, nil
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, database.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, database.ErrProductNotFound),
		errors.Is(err, database.ErrSaleNotFound),
		errors.Is(err, database.ErrResellerNotFound):
		return http.StatusNotFound
	case errors.Is(err, database.ErrInsufficientStock),
		errors.Is(err, database.ErrDuplicate):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func respondStoreError(w http.ResponseWriter, logger *zap.Logger, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		logger.Error("Request failed", zap.Error(err))
		respondError(w, status, "Internal server error")
		return
	}
	respondError(w, status, err.Error())
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
