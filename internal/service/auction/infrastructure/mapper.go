package infrastructure

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"auctionhub/internal/service/auction/domain"
)

// ToDomainBid 将数据库模型转换为领域模型
func ToDomainBid(model *BidModel) *domain.BidRecord {
	if model == nil {
		return nil
	}
	rec := &domain.BidRecord{
		ID:        model.ID,
		ProductID: model.ProductID,
		Bidder:    domain.ParseBidderKey(model.BidderKey),
		Amount:    model.Amount,
		IsAuto:    model.IsAuto,
		Status:    domain.BidStatus(model.Status),
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
	if model.MaxAutoAmount.Valid {
		m := model.MaxAutoAmount.Decimal
		rec.MaxAutoAmount = &m
	}
	return rec
}

// FromDomainBid 将领域模型转换为用于插入的数据库模型
func FromDomainBid(rec *domain.BidRecord) *BidModel {
	if rec == nil {
		return nil
	}
	model := &BidModel{
		ID:        rec.ID,
		ProductID: rec.ProductID,
		BidderKey: rec.Bidder.Key(),
		Amount:    rec.Amount,
		IsAuto:    rec.IsAuto,
		Status:    string(rec.Status),
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
	if model.Status == "" {
		model.Status = string(domain.BidStatusActive)
	}
	if rec.MaxAutoAmount != nil {
		model.MaxAutoAmount = decimal.NewNullDecimal(*rec.MaxAutoAmount)
	}
	return model
}

// ToRawSettings 把设置行还原为解析器的输入
func ToRawSettings(model *AuctionSettingsModel) domain.RawSettings {
	return domain.RawSettings{
		ProductID:               model.ProductID,
		Enabled:                 model.Enabled,
		StartPrice:              model.StartPrice,
		BidIncrement:            model.BidIncrement,
		ReservePrice:            model.ReservePrice,
		BuyNowEnabled:           model.BuyNowEnabled,
		BuyNowPrice:             model.BuyNowPrice,
		Sealed:                  model.Sealed,
		AutomaticBidding:        model.AutomaticBidding,
		IncrementMode:           model.IncrementMode,
		AutomaticIncrementValue: model.AutomaticIncrementValue,
		IncrementRules:          model.IncrementRules,
		StartAt:                 model.StartAt,
		EndAt:                   model.EndAt,
	}
}

// FromRawSettings 生成设置行，并按解析结果填充 AuctionEnabled 和 EndsAt
func FromRawSettings(raw domain.RawSettings, opts domain.ResolveOptions) *AuctionSettingsModel {
	model := &AuctionSettingsModel{
		ProductID:               raw.ProductID,
		Enabled:                 raw.Enabled,
		StartPrice:              raw.StartPrice,
		BidIncrement:            raw.BidIncrement,
		ReservePrice:            raw.ReservePrice,
		BuyNowEnabled:           raw.BuyNowEnabled,
		BuyNowPrice:             raw.BuyNowPrice,
		Sealed:                  raw.Sealed,
		AutomaticBidding:        raw.AutomaticBidding,
		IncrementMode:           raw.IncrementMode,
		AutomaticIncrementValue: raw.AutomaticIncrementValue,
		IncrementRules:          raw.IncrementRules,
		StartAt:                 raw.StartAt,
		EndAt:                   raw.EndAt,
	}
	cfg := domain.ResolveConfig(raw, opts)
	model.AuctionEnabled = cfg.Enabled
	if cfg.EndAt != nil {
		model.EndsAt = sql.NullTime{Time: cfg.EndAt.UTC(), Valid: true}
	}
	return model
}

func ToDomainFinalization(model *FinalizationModel) *domain.FinalizationRecord {
	if model == nil {
		return nil
	}
	rec := &domain.FinalizationRecord{
		ProductID:     model.ProductID,
		Processed:     model.Processed,
		Reason:        domain.OutcomeReason(model.Reason),
		Winner:        domain.ParseBidderKey(model.WinnerKey),
		WinningBidID:  model.WinningBidID,
		WinningAmount: model.WinningAmount,
		ProcessedAt:   model.ProcessedAt,
	}
	if model.WinningTime.Valid {
		t := model.WinningTime.Time
		rec.WinningTime = &t
	}
	return rec
}

func FromDomainFinalization(rec domain.FinalizationRecord) *FinalizationModel {
	model := &FinalizationModel{
		ProductID:     rec.ProductID,
		Processed:     rec.Processed,
		Reason:        string(rec.Reason),
		WinnerKey:     rec.Winner.Key(),
		WinningBidID:  rec.WinningBidID,
		WinningAmount: rec.WinningAmount,
		ProcessedAt:   rec.ProcessedAt,
	}
	if rec.WinningTime != nil {
		model.WinningTime = sql.NullTime{Time: *rec.WinningTime, Valid: true}
	}
	if model.ProcessedAt.IsZero() {
		model.ProcessedAt = time.Now().UTC()
	}
	return model
}
