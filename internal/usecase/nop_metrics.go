package usecase

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/bankledger/internal/domain"
)

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) AccountCreated() {}
func (NopMetrics) SetAccountCount(int64) {}
func (NopMetrics) TransactionRecorded(domain.TransactionType, decimal.Decimal) {}
func (NopMetrics) EventPublished(string) {}
func (NopMetrics) EventProcessed(string, time.Duration) {}
func (NopMetrics) EventFailed(string) {}
func (NopMetrics) LockAcquired(string) {}
func (NopMetrics) LockFailed(string) {}
func (NopMetrics) LeaseExpired(string) {}
