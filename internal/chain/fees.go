package chain

import (
	"math/big"
)

// Fees are EIP-1559 fee parameters for a transaction.
type Fees struct {
	GasTipCap *big.Int
	GasFeeCap *big.Int
}

// FloorFees returns fees where both caps equal floor.
func FloorFees(floor *big.Int) Fees {
	return Fees{
		GasTipCap: new(big.Int).Set(floor),
		GasFeeCap: new(big.Int).Set(floor),
	}
}

// Clamp raises both caps to at least floor. Missing values take the floor.
func (f Fees) Clamp(floor *big.Int) Fees {
	return Fees{
		GasTipCap: maxBig(f.GasTipCap, floor),
		GasFeeCap: maxBig(f.GasFeeCap, floor),
	}
}

// Cost is the worst case fee for gas units.
func (f Fees) Cost(gas uint64) *big.Int {
	if f.GasFeeCap == nil {
		return new(big.Int)
	}
	return new(big.Int).Mul(f.GasFeeCap, new(big.Int).SetUint64(gas))
}

func maxBig(v, floor *big.Int) *big.Int {
	if v == nil || v.Cmp(floor) < 0 {
		return new(big.Int).Set(floor)
	}
	return new(big.Int).Set(v)
}
