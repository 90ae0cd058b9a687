package checkout

import "github.com/shopspring/decimal"

var centsFactor = decimal.NewFromInt(100)
