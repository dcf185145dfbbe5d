package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"
)

// buildSchema creates the GraphQL schema over a run's persisted results:
// Run, Ride, Vehicle (via its vehicle_log), and Traveller.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	runType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Run",
		Fields: graphql.Fields{
			"run_id":         &graphql.Field{Type: graphql.String},
			"config_path":    &graphql.Field{Type: graphql.String},
			"started_at":     &graphql.Field{Type: graphql.String},
			"finished_at":    &graphql.Field{Type: graphql.String},
			"requests_total": &graphql.Field{Type: graphql.Int},
			"taxi_assigned":  &graphql.Field{Type: graphql.Int},
			"pool_assigned":  &graphql.Field{Type: graphql.Int},
			"resigned":       &graphql.Field{Type: graphql.Int},
			"total_profit":   &graphql.Field{Type: graphql.Float},
			"total_mileage":  &graphql.Field{Type: graphql.Float},
		},
	})

	rideType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Ride",
		Fields: graphql.Fields{
			"ride_id":    &graphql.Field{Type: graphql.String},
			"operator":   &graphql.Field{Type: graphql.String},
			"type":       &graphql.Field{Type: graphql.String},
			"travellers": &graphql.Field{Type: graphql.NewList(graphql.String)},
			"revenue":    &graphql.Field{Type: graphql.Float},
			"cost":       &graphql.Field{Type: graphql.Float},
			"profit":     &graphql.Field{Type: graphql.Float},
		},
	})

	vehicleEventType := graphql.NewObject(graphql.ObjectConfig{
		Name: "VehicleEvent",
		Fields: graphql.Fields{
			"vehicle_id": &graphql.Field{Type: graphql.String},
			"operator":   &graphql.Field{Type: graphql.String},
			"event_time": &graphql.Field{Type: graphql.String},
			"node":       &graphql.Field{Type: graphql.Int},
			"kind":       &graphql.Field{Type: graphql.String},
			"mileage":    &graphql.Field{Type: graphql.Float},
		},
	})

	travellerType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Traveller",
		Fields: graphql.Fields{
			"traveller_id": &graphql.Field{Type: graphql.String},
			"served_by":    &graphql.Field{Type: graphql.String},
			"pickup_delay": &graphql.Field{Type: graphql.Float},
			"resigned":     &graphql.Field{Type: graphql.Boolean},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"run": &graphql.Field{
				Type:        runType,
				Description: "Get a run's summary by ID",
				Args: graphql.FieldConfigArgument{
					"run_id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					runID := p.Args["run_id"].(string)
					return deps.Runs.GetSummary(p.Context, runID)
				},
			},
			"rides": &graphql.Field{
				Type:        graphql.NewList(rideType),
				Description: "List rides for a run",
				Args: graphql.FieldConfigArgument{
					"run_id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					runID := p.Args["run_id"].(string)
					return deps.Runs.ListRideLog(p.Context, runID)
				},
			},
			"vehicleEvents": &graphql.Field{
				Type:        graphql.NewList(vehicleEventType),
				Description: "List a vehicle's events for a run",
				Args: graphql.FieldConfigArgument{
					"run_id":     &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"vehicle_id": &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					runID := p.Args["run_id"].(string)
					vehicleID := p.Args["vehicle_id"].(string)
					return deps.Runs.ListVehicleLog(p.Context, runID, vehicleID)
				},
			},
			"travellers": &graphql.Field{
				Type:        graphql.NewList(travellerType),
				Description: "List traveller results for a run",
				Args: graphql.FieldConfigArgument{
					"run_id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					runID := p.Args["run_id"].(string)
					return deps.Runs.ListTravellerResults(p.Context, runID)
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.Context(),
		})

		return c.JSON(result)
	}
}
