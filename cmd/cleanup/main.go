package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/qs3c/ytd_go_server/config"
	"github.com/qs3c/ytd_go_server/internal/model"
	"github.com/qs3c/ytd_go_server/internal/repository"
)

var (
	dryRun        = flag.Bool("dry-run", true, "Dry run mode, don't actually delete rows")
	retentionDays = flag.Int("retention-days", 0, "Days of usage records to keep (0 = use config)")
	cleanSessions = flag.Bool("clean-sessions", true, "Delete expired user sessions")
	cleanBoosts   = flag.Bool("clean-boosts", true, "Clear expired boost grants")
	cleanPromos   = flag.Bool("clean-promos", true, "Deactivate expired promo codes")
	cleanUsage    = flag.Bool("clean-usage", true, "Delete usage records past retention")
)

func main() {
	flag.Parse()

	log.Println("🧹 Starting cleanup task...")
	log.Printf("Mode: dry-run=%v", *dryRun)

	// 加载配置
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 连接数据库
	db, err := connectDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	days := *retentionDays
	if days <= 0 {
		days = cfg.Retention.UsageDays
	}

	now := time.Now().UTC()
	var total int64

	if *cleanSessions {
		total += sweepSessions(db, now)
	}
	if *cleanBoosts {
		total += sweepBoosts(db, now)
	}
	if *cleanPromos {
		total += sweepPromos(db, now)
	}
	if *cleanUsage && days > 0 {
		total += sweepUsage(db, now, days)
	}

	// 输出统计
	log.Println("\n" + strings.Repeat("=", 60))
	log.Printf("📊 Cleanup summary: %d rows affected", total)
	if *dryRun {
		log.Println("⚠️  DRY RUN MODE - No rows were actually touched")
		log.Println("   Run with -dry-run=false to apply changes")
	} else {
		log.Println("✅ Cleanup completed!")
	}
	log.Println(strings.Repeat("=", 60))
}

// sweepSessions 删除已过期的用户会话
func sweepSessions(db *gorm.DB, now time.Time) int64 {
	if *dryRun {
		var count int64
		db.Model(&model.UserSession{}).Where("expires_at <= ?", now).Count(&count)
		log.Printf("Sessions: %d expired rows would be deleted", count)
		return count
	}

	deleted, err := repository.NewSessionRepository(db).DeleteExpired(now)
	if err != nil {
		log.Printf("Sessions: delete failed: %v", err)
		return 0
	}
	log.Printf("Sessions: deleted %d expired rows", deleted)
	return deleted
}

// sweepBoosts 清除已过期的 boost 授予
func sweepBoosts(db *gorm.DB, now time.Time) int64 {
	if *dryRun {
		var count int64
		db.Model(&model.User{}).
			Where("boost_expire_at IS NOT NULL AND boost_expire_at <= ?", now).
			Count(&count)
		log.Printf("Boosts: %d expired grants would be cleared", count)
		return count
	}

	cleared, err := repository.NewUserRepository(db).ClearExpiredBoosts(now)
	if err != nil {
		log.Printf("Boosts: clear failed: %v", err)
		return 0
	}
	log.Printf("Boosts: cleared %d expired grants", cleared)
	return cleared
}

// sweepPromos 下线已过期的促销码
func sweepPromos(db *gorm.DB, now time.Time) int64 {
	if *dryRun {
		var count int64
		db.Model(&model.PromoCode{}).
			Where("is_active = ? AND expires_at IS NOT NULL AND expires_at <= ?", true, now).
			Count(&count)
		log.Printf("Promo codes: %d expired codes would be deactivated", count)
		return count
	}

	deactivated, err := repository.NewPromoRepository(db).DeactivateExpired(now)
	if err != nil {
		log.Printf("Promo codes: deactivate failed: %v", err)
		return 0
	}
	log.Printf("Promo codes: deactivated %d expired codes", deactivated)
	return deactivated
}

// sweepUsage 删除超过保留期的用量记录
func sweepUsage(db *gorm.DB, now time.Time, days int) int64 {
	cutoff := model.UsageDate(now.AddDate(0, 0, -days))

	if *dryRun {
		var count int64
		db.Model(&model.UsageRecord{}).Where("date < ?", cutoff).Count(&count)
		log.Printf("Usage records: %d rows before %s would be deleted", count, cutoff)
		return count
	}

	deleted, err := repository.NewUsageRepository(db).DeleteBefore(cutoff)
	if err != nil {
		log.Printf("Usage records: delete failed: %v", err)
		return 0
	}
	log.Printf("Usage records: deleted %d rows before %s", deleted, cutoff)
	return deleted
}

// connectDB 连接数据库
func connectDB(cfg *config.Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		cfg.Database.Username,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Database,
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	return db, nil
}
