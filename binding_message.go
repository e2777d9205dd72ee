package saml

// BindingMessage is an outbound SAML message ready to be handed to
// whatever HTTP layer a caller wraps this core with (spec §1 non-goals:
// this core never touches net/http itself). For the Redirect binding,
// Parameters are query-string values; for the POST binding, they are the
// auto-submitted form's field values.
type BindingMessage struct {
	Binding    string
	URL        string
	Parameters map[string]string
}
