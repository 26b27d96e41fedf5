package dto

type CheckoutRequest struct {
	Tier string `json:"tier"`
}

type ProductCheckoutRequest struct {
	ProductID string `json:"product_id"`
}

type RedirectResponse struct {
	URL string `json:"url"`
}
