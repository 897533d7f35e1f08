package upstream

// Outcome is the result of one fetch attempt for one identifier.
type Outcome struct {
	Identifier string
	Product    Product
	Err        *FetchError
}

// Success reports whether the attempt produced a product.
func (o Outcome) Success() bool {
	return o.Err == nil && o.Product != nil
}

// Retriable reports whether the outcome is a failure worth another round.
func (o Outcome) Retriable() bool {
	return o.Err.Retriable()
}

// Succeeded builds a success outcome.
func Succeeded(id string, p Product) Outcome {
	return Outcome{Identifier: id, Product: p}
}

// Failed builds a failure outcome.
func Failed(id string, err *FetchError) Outcome {
	return Outcome{Identifier: id, Err: err}
}
