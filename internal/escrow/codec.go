package escrow

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"instantsend-core/internal/core/domain"
	"instantsend-core/pkg/apperror"
)

// Anchor-style operation names. The discriminator binds an instruction to a
// specific on-chain handler; a mismatch is rejected by the program.
const (
	OpInitializeSOL = "initialize_transfer_sol"
	OpInitializeSPL = "initialize_transfer_spl"
	OpRedeemSOL     = "redeem_funds_sol"
	OpRedeemSPL     = "redeem_funds_spl"
)

// Discriminator returns the first 8 bytes of sha256("global:" + name).
func Discriminator(name string) [8]byte {
	digest := sha256.Sum256([]byte("global:" + name))
	var d [8]byte
	copy(d[:], digest[:8])
	return d
}

// Codec builds instructions with the byte layout and account order the escrow
// program expects.
type Codec struct {
	cfg Config
}

func NewCodec(cfg Config) *Codec {
	return &Codec{cfg: cfg}
}

// BuildInitialize encodes the initialize instruction for the given transfer
// kind. Payload: discriminator(8) || amount_le(8) || expiration_le(8) ||
// secretHash(32). Amount conversion rounds half away from zero via the token
// registry so build and verification can never disagree.
func (c *Codec) BuildInitialize(
	payer solana.PublicKey,
	token domain.Token,
	amount decimal.Decimal,
	expirationUnixTime int64,
	secretHash [32]byte,
	escrowAccount solana.PublicKey,
) (solana.Instruction, error) {
	if expirationUnixTime <= 0 {
		return nil, apperror.ErrInvalidParameters("expiration must be a positive unix timestamp")
	}

	amountRaw, err := token.ToSmallestUnit(amount)
	if err != nil {
		return nil, err
	}

	op := OpInitializeSOL
	if !token.Native() {
		op = OpInitializeSPL
	}
	data := initializeData(Discriminator(op), amountRaw, expirationUnixTime, secretHash)

	if token.Native() {
		return solana.NewInstruction(c.cfg.ProgramID, []*solana.AccountMeta{
			{PublicKey: payer, IsSigner: true, IsWritable: true},
			{PublicKey: escrowAccount, IsWritable: true},
			{PublicKey: solana.SystemProgramID},
			{PublicKey: solana.SysVarRentPubkey},
		}, data), nil
	}

	escrowTokenAccount, err := DeriveAssociatedTokenAddress(escrowAccount, token.Mint)
	if err != nil {
		return nil, err
	}
	payerTokenAccount, err := DeriveAssociatedTokenAddress(payer, token.Mint)
	if err != nil {
		return nil, err
	}

	return solana.NewInstruction(c.cfg.ProgramID, []*solana.AccountMeta{
		{PublicKey: payer, IsSigner: true, IsWritable: true},
		{PublicKey: escrowAccount, IsWritable: true},
		{PublicKey: escrowTokenAccount, IsWritable: true},
		{PublicKey: payerTokenAccount, IsWritable: true},
		{PublicKey: token.Mint},
		{PublicKey: solana.SystemProgramID},
		{PublicKey: solana.TokenProgramID},
		{PublicKey: solana.SPLAssociatedTokenAccountProgramID},
		{PublicKey: solana.SysVarRentPubkey},
	}, data), nil
}

// BuildRedeem encodes the redeem instruction. Payload: discriminator(8) ||
// secret UTF-8 bytes, no length prefix — the program takes the length from
// the instruction size. The signer is both redeemer and recipient.
func (c *Codec) BuildRedeem(
	signer solana.PublicKey,
	token domain.Token,
	secret string,
	escrowAccount solana.PublicKey,
) (solana.Instruction, error) {
	if secret == "" {
		return nil, apperror.ErrInvalidParameters("redemption secret must not be empty")
	}

	if token.Native() {
		data := redeemData(Discriminator(OpRedeemSOL), secret)
		return solana.NewInstruction(c.cfg.ProgramID, []*solana.AccountMeta{
			{PublicKey: signer, IsSigner: true, IsWritable: true},
			{PublicKey: signer, IsWritable: true}, // recipient
			{PublicKey: escrowAccount, IsWritable: true},
			{PublicKey: signer, IsWritable: true}, // sender
			{PublicKey: solana.SystemProgramID},
		}, data), nil
	}

	escrowTokenAccount, err := DeriveAssociatedTokenAddress(escrowAccount, token.Mint)
	if err != nil {
		return nil, err
	}
	recipientTokenAccount, err := DeriveAssociatedTokenAddress(signer, token.Mint)
	if err != nil {
		return nil, err
	}

	data := redeemData(Discriminator(OpRedeemSPL), secret)
	return solana.NewInstruction(c.cfg.ProgramID, []*solana.AccountMeta{
		{PublicKey: signer, IsSigner: true, IsWritable: true},
		{PublicKey: signer, IsWritable: true}, // recipient
		{PublicKey: escrowAccount, IsWritable: true},
		{PublicKey: escrowTokenAccount, IsWritable: true},
		{PublicKey: recipientTokenAccount, IsWritable: true},
		{PublicKey: token.Mint},
		{PublicKey: signer, IsWritable: true}, // sender
		{PublicKey: solana.TokenProgramID},
		{PublicKey: solana.SPLAssociatedTokenAccountProgramID},
		{PublicKey: solana.SystemProgramID},
		{PublicKey: solana.SysVarRentPubkey},
	}, data), nil
}

func initializeData(disc [8]byte, amountRaw uint64, expiration int64, secretHash [32]byte) []byte {
	data := make([]byte, 0, 8+8+8+32)
	data = append(data, disc[:]...)
	data = binary.LittleEndian.AppendUint64(data, amountRaw)
	data = binary.LittleEndian.AppendUint64(data, uint64(expiration))
	data = append(data, secretHash[:]...)
	return data
}

func redeemData(disc [8]byte, secret string) []byte {
	data := make([]byte, 0, 8+len(secret))
	data = append(data, disc[:]...)
	data = append(data, []byte(secret)...)
	return data
}
