package invoicing

import (
	"log"
	"time"

	"github.com/distrimax/fulfillgo/internal/models"
	"github.com/distrimax/fulfillgo/internal/packing"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service keeps the local product catalog and order lines in step with
// the external invoicing system. A background loop refreshes both; the
// line refresh feeds the reconciliation engine so in-progress packing
// work picks up invoice changes without losing scan evidence.
type Service struct {
	client     *Client
	db         *gorm.DB
	reconciler *packing.Reconciler
	cfg        Config
	stop       chan struct{}
}

// Config holds invoicing connection settings
type Config struct {
	URL          string
	Database     string
	Username     string
	Password     string
	SyncInterval int // in minutes
}

// NewService creates a new invoicing sync service
func NewService(db *gorm.DB, reconciler *packing.Reconciler, cfg Config) *Service {
	return &Service{
		client:     NewClient(cfg.URL, cfg.Database, cfg.Username, cfg.Password),
		db:         db,
		reconciler: reconciler,
		cfg:        cfg,
		stop:       make(chan struct{}),
	}
}

// Start begins the background synchronization loop
func (s *Service) Start() {
	if s.cfg.URL == "" {
		log.Println("Invoicing sync disabled: INVOICING_URL not configured")
		return
	}

	go func() {
		log.Println("📡 Invoicing Sync Service started")

		if _, err := s.client.Authenticate(); err != nil {
			log.Printf("❌ Invoicing authentication failed: %v", err)
			return
		}

		// Initial sync delay
		time.Sleep(5 * time.Second)
		s.runFullSync()

		interval := time.Duration(s.cfg.SyncInterval) * time.Minute
		if s.cfg.SyncInterval <= 0 {
			interval = 15 * time.Minute
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.runFullSync()
			case <-s.stop:
				log.Println("🛑 Invoicing Sync Service stopped")
				return
			}
		}
	}()
}

// Stop halts the service
func (s *Service) Stop() {
	close(s.stop)
}

// runFullSync runs all sync operations
func (s *Service) runFullSync() {
	log.Println("🔄 Invoicing: Starting full sync...")

	s.syncProducts()
	s.refreshOpenOrders()

	log.Println("✅ Invoicing: Full sync completed")
}

// syncProducts pulls catalog changes since the local write-date watermark
func (s *Service) syncProducts() {
	log.Println("📦 Invoicing: Syncing products...")

	var lastProduct models.Product
	lastWriteDate := "2000-01-01 00:00:00"

	result := s.db.Order("write_date DESC").First(&lastProduct)
	if result.Error == nil && !lastProduct.WriteDate.IsZero() {
		lastWriteDate = lastProduct.WriteDate.Format("2006-01-02 15:04:05")
	}

	domain := []interface{}{
		[]interface{}{"write_date", ">", lastWriteDate},
	}

	var products []models.Product
	err := s.client.SearchRead("product.product", domain, []string{
		"default_code", "barcode", "name", "list_price", "write_date", "active",
	}, 1000, 0, &products)
	if err != nil {
		log.Printf("❌ Invoicing Sync Error (Products): %v", err)
		return
	}

	if len(products) == 0 {
		return
	}

	count := 0
	for _, p := range products {
		p.LastSyncedAt = time.Now()

		if err := s.db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).Create(&p).Error; err != nil {
			log.Printf("Failed to save product %d: %v", p.ID, err)
		} else {
			count++
		}
	}

	log.Printf("✅ Invoicing: Updated %d products", count)
}

// refreshOpenOrders re-fetches invoice lines for every order currently
// in the packing stage and reconciles local items against them
func (s *Service) refreshOpenOrders() {
	var orders []models.Order
	if err := s.db.Where("status IN ? AND invoice_id IS NOT NULL",
		[]models.OrderStatus{models.OrderStatusPicking, models.OrderStatusPacking}).
		Find(&orders).Error; err != nil {
		log.Printf("❌ Invoicing Sync Error (Orders): %v", err)
		return
	}

	for i := range orders {
		if _, err := s.ResyncOrder(orders[i].ID); err != nil {
			log.Printf("❌ Invoicing: resync failed for order %d: %v", orders[i].ID, err)
		}
	}
}

// ResyncOrder fetches the order's current invoice lines and merges them
// into local items. Also used by the manual resync endpoint.
func (s *Service) ResyncOrder(orderID uint) (*packing.ReconcileResult, error) {
	var order models.Order
	if err := s.db.First(&order, orderID).Error; err != nil {
		return nil, packing.ErrNotFound
	}
	if order.InvoiceID == nil {
		return nil, packing.ErrInvalidState
	}

	lines, err := s.client.FetchInvoiceLines(*order.InvoiceID)
	if err != nil {
		return nil, err
	}

	external := make([]packing.ExternalLine, 0, len(lines))
	for i := range lines {
		lineID := lines[i].ID
		external = append(external, packing.ExternalLine{
			LineID:      &lineID,
			ProductCode: lines[i].ProductCode.String(),
			Name:        lines[i].Name,
			Quantity:    lines[i].Quantity,
			UnitPrice:   lines[i].PriceUnit,
		})
	}

	result, err := s.reconciler.Reconcile(orderID, external)
	if err != nil {
		return nil, err
	}

	if result.RequiresReview {
		log.Printf("🔎 Invoicing: order %d flagged requires_review after reconciliation", orderID)
	}
	return result, nil
}
