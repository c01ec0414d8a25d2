// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/dalemusser/clubhub/internal/app/system/events"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database/back-end dependencies for the app.
//
// WAFFLE passes DBDeps by value to each hook, so the services built in
// Startup live behind a pointer that ConnectDB allocates.
type DBDeps struct {
	ClubMongoClient   *mongo.Client
	ClubMongoDatabase *mongo.Database

	// Events is the lifecycle publisher: AMQP when configured, Nop otherwise.
	Events events.Publisher

	app *services
}
