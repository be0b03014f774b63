package internal

import (
	"freedomwall/internal/controllers"
	"freedomwall/internal/providers"
	"net/http"
)

func InitRoutes(storeController *controllers.StoreController) providers.RouterProviderInterface {
	routers := providers.NewRouterProvider()

	routers.Post("/collections/{collection}/records", http.HandlerFunc(storeController.Append))
	routers.Get("/collections/{collection}/records", http.HandlerFunc(storeController.Query))
	routers.Get("/collections/{collection}/subscribe", http.HandlerFunc(storeController.Subscribe))
	return routers
}
