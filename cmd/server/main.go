package main

import (
	"facture-workflow/internal/cli"

	_ "facture-workflow/docs" // Swagger docs
)

// @title Facture Workflow API
// @version 1.0
// @description Supplier invoice validation workflow: two validation levels then treasury payment.

// @contact.name API Support
// @contact.email support@example.com

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @BasePath /api/v1
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	cli.Execute()
}
