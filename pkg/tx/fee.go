package tx

// Sizes of the per-input witness fields appended by Serialize.
const (
	SignatureSize = 64
	PubKeySize    = 33
	witnessSize   = 4 + SignatureSize + 4 + PubKeySize
)

// EstimateSize returns the serialized size of tx once every input carries a
// signature and public key.
func EstimateSize(transaction *Transaction) int {
	return len(transaction.SigningBytes()) + witnessSize*len(transaction.Inputs)
}

// FeeForSize returns the fee for size bytes at feePerKb base units per
// 1000 bytes, rounded up.
func FeeForSize(size int, feePerKb uint64) uint64 {
	return (uint64(size)*feePerKb + 999) / 1000
}

// RequiredFee returns the minimum fee for transaction at feePerKb.
func RequiredFee(transaction *Transaction, feePerKb uint64) uint64 {
	return FeeForSize(EstimateSize(transaction), feePerKb)
}
