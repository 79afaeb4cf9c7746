package region

import (
	"github.com/rill-lang/rill/frontend/ilerr"
	"github.com/rill-lang/rill/frontend/types"
)

// Signature is the part of a function declaration elision looks at.
// Receiver is nil for functions without one.
type Signature struct {
	Name     string
	Receiver types.Type
	Params   []types.Type
	Ret      types.Type
}

func (sig Signature) Function() types.Function {
	params := sig.Params
	if sig.Receiver != nil {
		params = append([]types.Type{sig.Receiver}, sig.Params...)
	}
	return types.Function{Params: params, Ret: sig.Ret}
}

// Elision is the result of eliding a signature
type Elision struct {
	Signature Signature
	// Inputs are the regions of the input positions, receiver first, after elision
	Inputs []Region
	// Output is the region given to elided output positions, if there were any
	Output Region
}

// Elide fills in the elided regions of sig.
//
// Every elided input position gets its own fresh region variable. Elided
// output positions then take the region of the receiver when the receiver
// has one, or else the region of the only input position when there is
// exactly one. Any other signature with elided outputs is an
// ilerr.MissingRegion error.
func (s *Solver) Elide(sig Signature) (*Elision, error) {
	var inputs []Region
	fillInput := func(r Region) Region {
		if r.IsElided() {
			r = s.Fresh()
		}
		inputs = append(inputs, r)
		return r
	}
	elided := sig
	var receiverRegions []Region
	if sig.Receiver != nil {
		elided.Receiver = types.MapRegions(sig.Receiver, fillInput)
		receiverRegions = append(receiverRegions, inputs...)
	}
	elided.Params = make([]types.Type, len(sig.Params))
	for i, p := range sig.Params {
		elided.Params[i] = types.MapRegions(p, fillInput)
	}

	result := &Elision{Signature: elided, Inputs: inputs}
	if sig.Ret == nil || !hasElided(sig.Ret) {
		return result, nil
	}
	switch {
	case len(receiverRegions) > 0:
		result.Output = receiverRegions[0]
	case len(inputs) == 1:
		result.Output = inputs[0]
	default:
		return nil, ilerr.New(ilerr.NewMissingRegion{Function: sig.Name, Inputs: len(inputs)})
	}
	elided.Ret = types.MapRegions(sig.Ret, func(r Region) Region {
		if r.IsElided() {
			return result.Output
		}
		return r
	})
	result.Signature = elided
	logger.Debug("elided signature", "fn", sig.Name, "sig", elided.Function(), "output", string(result.Output))
	return result, nil
}

func hasElided(t types.Type) bool {
	found := false
	types.MapRegions(t, func(r Region) Region {
		found = found || r.IsElided()
		return r
	})
	return found
}
