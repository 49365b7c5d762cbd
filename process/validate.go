package process

import (
	"github.com/zylith-labs/asp/felt"
	"github.com/zylith-labs/asp/model"
)

func validatePoolKey(k model.PoolKey) error {
	if err := felt.ValidateAddress(k.Token0, "pool_key.token_0"); err != nil {
		return err
	}
	if err := felt.ValidateAddress(k.Token1, "pool_key.token_1"); err != nil {
		return err
	}
	if err := felt.ValidateDecimal(k.Fee, "pool_key.fee"); err != nil {
		return err
	}
	if err := felt.ValidateDecimal(k.TickSpacing, "pool_key.tick_spacing"); err != nil {
		return err
	}
	return nil
}

func validateNoteInput(n NoteInput, prefix string) error {
	if err := felt.ValidateSecret(n.Secret, prefix+".secret"); err != nil {
		return err
	}
	if err := felt.ValidateSecret(n.Nullifier, prefix+".nullifier"); err != nil {
		return err
	}
	if err := felt.ValidateDecimal(n.BalanceLow, prefix+".balance_low"); err != nil {
		return err
	}
	if err := felt.ValidateDecimal(n.BalanceHigh, prefix+".balance_high"); err != nil {
		return err
	}
	if err := felt.ValidateAddress(n.Token, prefix+".token"); err != nil {
		return err
	}
	return nil
}

func validateNoteSecrets(n NoteSecrets, prefix string) error {
	if err := felt.ValidateSecret(n.Secret, prefix+".secret"); err != nil {
		return err
	}
	return felt.ValidateSecret(n.Nullifier, prefix+".nullifier")
}

func validateOutputNote(n OutputNoteInput, prefix string) error {
	if err := felt.ValidateSecret(n.Secret, prefix+".secret"); err != nil {
		return err
	}
	if err := felt.ValidateSecret(n.Nullifier, prefix+".nullifier"); err != nil {
		return err
	}
	if err := felt.ValidateDecimal(n.AmountLow, prefix+".amount_low"); err != nil {
		return err
	}
	if err := felt.ValidateDecimal(n.AmountHigh, prefix+".amount_high"); err != nil {
		return err
	}
	return felt.ValidateAddress(n.Token, prefix+".token")
}
