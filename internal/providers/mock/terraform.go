// ABOUTME: Mock Terraform document source for mock mode and demos.
// ABOUTME: Serves a fixed corpus seeded with common GCP and AWS misconfigurations.

package mock

import (
	"context"

	"github.com/jfeddern/TerraSentry/internal/types"
	"github.com/sirupsen/logrus"
)

const storageTF = `resource "google_storage_bucket" "public_assets" {
  name     = "demo-public-assets"
  location = "US"
}

resource "google_storage_bucket_iam_member" "public_read" {
  bucket = google_storage_bucket.public_assets.name
  role   = "roles/storage.objectViewer"
  member = "allUsers"
}
`

const computeTF = `resource "google_compute_firewall" "allow_ssh" {
  name    = "allow-ssh-anywhere"
  network = "default"

  allow {
    protocol = "tcp"
    ports    = ["22"]
  }

  source_ranges = ["0.0.0.0/0"]
}

resource "google_sql_database_instance" "main" {
  name             = "orders-db"
  database_version = "POSTGRES_14"

  settings {
    tier = "db-f1-micro"
    ip_configuration {
      ipv4_enabled = true
      require_ssl  = false
    }
  }
}
`

const iamTF = `resource "google_project_iam_member" "ci_owner" {
  project = var.project_id
  role    = "roles/owner"
  member  = "serviceAccount:ci@demo.iam.gserviceaccount.com"
}

variable "db_password" {
  default = "SuperSecret123!"
}
`

const ecsTF = `resource "aws_ecs_task_definition" "api" {
  family = "orders-api"
  container_definitions = jsonencode([
    {
      name  = "api"
      image = "123456789012.dkr.ecr.us-east-1.amazonaws.com/orders-api:v1.4.2"
    },
    {
      name  = "proxy"
      image = "123456789012.dkr.ecr.us-east-1.amazonaws.com/nginx-proxy:1.25"
    }
  ])
}
`

// MockTerraformSource always returns the same four documents
type MockTerraformSource struct {
	logger *logrus.Logger
}

func NewMockTerraformSource(logger *logrus.Logger) *MockTerraformSource {
	return &MockTerraformSource{logger: logger}
}

func (m *MockTerraformSource) Name() string {
	return "mock-terraform"
}

func (m *MockTerraformSource) Discover(ctx context.Context) ([]types.Document, error) {
	docs := []types.Document{
		{Path: "mock/compute.tf", Content: computeTF},
		{Path: "mock/ecs.tf", Content: ecsTF},
		{Path: "mock/iam.tf", Content: iamTF},
		{Path: "mock/storage.tf", Content: storageTF},
	}

	m.logger.WithField("document_count", len(docs)).Info("Mock document discovery completed")
	return docs, nil
}
