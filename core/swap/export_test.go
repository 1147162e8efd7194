package swap

import "time"

var DepositKey = depositKey

func (l *Ledger) SetTimeNow(f func() time.Time) {
	l.timeNow = f
}
