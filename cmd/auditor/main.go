// Command auditor is an AWS Lambda function consuming the entity tables'
// DynamoDB streams. It reports deleted authors and genres that still have
// books, which the delete path cannot rule out on its own.
package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/jacentio/shelf/catalog/dynamo"
	"github.com/jacentio/shelf/internal/cli"
	"github.com/jacentio/shelf/internal/config"
	"github.com/jacentio/shelf/internal/logging"
	"github.com/jacentio/shelf/stream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger := logging.Setup(cfg.Logging.Level, "json")

	client, err := cli.NewDynamoDBClient(context.Background(), cfg.AWS)
	if err != nil {
		log.Fatal(err)
	}
	store := dynamo.New(client, cfg.DynamoConfig())

	lambda.Start(stream.NewAuditor(store.Entities(), logger).Handle)
}
