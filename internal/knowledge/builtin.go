// ABOUTME: Built-in provider-specific security pattern tables.
// ABOUTME: One table is selected per run; tables are never mixed.

package knowledge

import "github.com/jfeddern/TerraSentry/internal/types"

var gcpPatterns = []types.SecurityPattern{
	{
		ID:            "GCP-001",
		Category:      "Public Access Controls",
		Pattern:       `member = "allUsers"`,
		Vulnerability: "Public resource access granted to all internet users",
		Severity:      types.SeverityCritical,
		Description:   "Resources configured with 'allUsers' member grants public access to anyone on the internet",
		Impact:        "Data breach, unauthorized access, service abuse, compliance violations",
		Remediation:   "Replace 'allUsers' with specific user/group identities and implement proper IAM controls",
	},
	{
		ID:            "GCP-002",
		Category:      "Hardcoded Credentials",
		Pattern:       `secret|password|key.*=.*["'][^"']{8,}["']`,
		Vulnerability: "Hardcoded secrets in configuration files",
		Severity:      types.SeverityCritical,
		Description:   "Sensitive credentials stored in plain text within Terraform configurations",
		Impact:        "Credential theft, unauthorized system access, privilege escalation",
		Remediation:   "Use secret management services like Google Secret Manager, AWS Secrets Manager",
	},
	{
		ID:            "GCP-003",
		Category:      "Network Security",
		Pattern:       `source_ranges.*=.*\["0\.0\.0\.0/0"\]`,
		Vulnerability: "Unrestricted network access from any IP address",
		Severity:      types.SeverityCritical,
		Description:   "Firewall rules allowing traffic from any IP address (0.0.0.0/0)",
		Impact:        "Unauthorized network access, lateral movement, service exploitation",
		Remediation:   "Restrict source ranges to specific IP ranges, implement bastion hosts",
	},
	{
		ID:            "GCP-004",
		Category:      "IAM Overprivilege",
		Pattern:       `roles/owner|roles/editor`,
		Vulnerability: "Excessive IAM permissions granted",
		Severity:      types.SeverityHigh,
		Description:   "Service accounts or users granted overly broad permissions like Owner or Editor roles",
		Impact:        "Privilege escalation, unauthorized resource access, data manipulation",
		Remediation:   "Apply principle of least privilege, use custom roles with minimal required permissions",
	},
	{
		ID:            "GCP-005",
		Category:      "CORS Misconfiguration",
		Pattern:       `origin.*=.*\["\*"\]`,
		Vulnerability: "Overly permissive CORS policy allowing any origin",
		Severity:      types.SeverityMedium,
		Description:   "CORS configuration allowing requests from any origin (*)",
		Impact:        "Cross-origin attacks, data theft, CSRF vulnerabilities",
		Remediation:   "Specify explicit allowed origins, implement proper CORS validation",
	},
	{
		ID:            "GCP-006",
		Category:      "Compute Security",
		Pattern:       `scopes.*=.*\[.*"cloud-platform".*\]`,
		Vulnerability: "VM instances with excessive OAuth scopes",
		Severity:      types.SeverityHigh,
		Description:   "Compute instances granted broad OAuth scopes like 'cloud-platform'",
		Impact:        "Lateral movement, service account token abuse, unauthorized API access",
		Remediation:   "Use minimal required scopes, implement workload identity where possible",
	},
	{
		ID:            "GCP-007",
		Category:      "Data Encryption",
		Pattern:       `encryption.*=.*false|kms_key_id.*=.*null`,
		Vulnerability: "Missing or disabled encryption configurations",
		Severity:      types.SeverityHigh,
		Description:   "Resources configured without proper encryption at rest",
		Impact:        "Data breach, compliance violations, unauthorized data access",
		Remediation:   "Enable encryption at rest using customer-managed encryption keys",
	},
	{
		ID:            "GCP-008",
		Category:      "Public Storage",
		Pattern:       `uniform_bucket_level_access.*=.*false`,
		Vulnerability: "Storage bucket without uniform access controls",
		Severity:      types.SeverityMedium,
		Description:   "Storage buckets configured without uniform bucket-level access",
		Impact:        "Inconsistent access controls, potential data exposure",
		Remediation:   "Enable uniform bucket-level access and implement consistent IAM policies",
	},
}

var awsPatterns = []types.SecurityPattern{
	{
		ID:            "AWS-001",
		Category:      "Network Security",
		Pattern:       `cidr_blocks\s*=\s*\[[^\]]*"0\.0\.0\.0/0"`,
		Vulnerability: "Security group open to the internet",
		Severity:      types.SeverityCritical,
		Description:   "Ingress or egress rules allowing traffic from any IPv4 address",
		Impact:        "Unauthorized network access, service exploitation",
		Remediation:   "Restrict cidr_blocks to known ranges and front services with a load balancer or bastion",
	},
	{
		ID:            "AWS-002",
		Category:      "Hardcoded Credentials",
		Pattern:       `(access_key|secret_key)\s*=\s*"[A-Za-z0-9/+=]{16,}"`,
		Vulnerability: "Static AWS credentials in provider configuration",
		Severity:      types.SeverityCritical,
		Description:   "Access keys committed to Terraform source",
		Impact:        "Credential theft and full account compromise",
		Remediation:   "Use IAM roles, environment credentials or AWS Secrets Manager; rotate the exposed key",
	},
	{
		ID:            "AWS-003",
		Category:      "IAM Overprivilege",
		Pattern:       `"Action"\s*:\s*"\*"|actions\s*=\s*\["\*"\]`,
		Vulnerability: "Wildcard IAM action",
		Severity:      types.SeverityHigh,
		Description:   "Policies granting every action on the targeted resources",
		Impact:        "Privilege escalation, data manipulation",
		Remediation:   "Enumerate the minimal set of actions required",
	},
	{
		ID:            "AWS-004",
		Category:      "Public Storage",
		Pattern:       `acl\s*=\s*"public-read(-write)?"`,
		Vulnerability: "S3 bucket with public ACL",
		Severity:      types.SeverityCritical,
		Description:   "Bucket objects readable (or writable) by anyone",
		Impact:        "Data exposure, content tampering",
		Remediation:   "Use private ACLs and enable S3 Block Public Access",
	},
	{
		ID:            "AWS-005",
		Category:      "Data Encryption",
		Pattern:       `(storage_encrypted|encrypted)\s*=\s*false`,
		Vulnerability: "Encryption at rest disabled",
		Severity:      types.SeverityHigh,
		Description:   "RDS, EBS or other storage created without encryption",
		Impact:        "Data breach, compliance violations",
		Remediation:   "Enable encryption with a customer-managed KMS key",
	},
	{
		ID:            "AWS-006",
		Category:      "Public Access Controls",
		Pattern:       `publicly_accessible\s*=\s*true`,
		Vulnerability: "Database reachable from the internet",
		Severity:      types.SeverityHigh,
		Description:   "RDS instance assigned a public endpoint",
		Impact:        "Brute force and exploitation of the database engine",
		Remediation:   "Set publicly_accessible = false and place the instance in private subnets",
	},
	{
		ID:            "AWS-007",
		Category:      "Logging",
		Pattern:       `enable_logging\s*=\s*false|is_multi_region_trail\s*=\s*false`,
		Vulnerability: "Audit logging disabled",
		Severity:      types.SeverityMedium,
		Description:   "CloudTrail or service logging switched off",
		Impact:        "Loss of forensic evidence",
		Remediation:   "Enable multi-region CloudTrail and service access logs",
	},
	{
		ID:            "AWS-008",
		Category:      "Compute Security",
		Pattern:       `http_tokens\s*=\s*"optional"`,
		Vulnerability: "IMDSv1 allowed on instances",
		Severity:      types.SeverityMedium,
		Description:   "Instance metadata service accepts unauthenticated v1 requests",
		Impact:        "Credential theft through SSRF",
		Remediation:   "Set http_tokens = \"required\" in metadata_options",
	},
}

var azurePatterns = []types.SecurityPattern{
	{
		ID:            "AZ-001",
		Category:      "Network Security",
		Pattern:       `source_address_prefix\s*=\s*"(\*|0\.0\.0\.0/0|Internet)"`,
		Vulnerability: "Network security rule open to the internet",
		Severity:      types.SeverityCritical,
		Description:   "NSG rule accepting traffic from any source",
		Impact:        "Unauthorized network access",
		Remediation:   "Restrict source_address_prefix to known ranges",
	},
	{
		ID:            "AZ-002",
		Category:      "Public Storage",
		Pattern:       `allow_nested_items_to_be_public\s*=\s*true|allow_blob_public_access\s*=\s*true`,
		Vulnerability: "Storage account allows public blobs",
		Severity:      types.SeverityHigh,
		Description:   "Blob containers can be exposed anonymously",
		Impact:        "Data exposure",
		Remediation:   "Disable public blob access on the storage account",
	},
	{
		ID:            "AZ-003",
		Category:      "Transport Security",
		Pattern:       `min_tls_version\s*=\s*"(TLS1_0|TLS1_1)"|enable_https_traffic_only\s*=\s*false|https_traffic_only_enabled\s*=\s*false`,
		Vulnerability: "Weak transport security",
		Severity:      types.SeverityMedium,
		Description:   "Outdated TLS or plain HTTP permitted",
		Impact:        "Traffic interception",
		Remediation:   "Require HTTPS and TLS 1.2 or later",
	},
	{
		ID:            "AZ-004",
		Category:      "IAM Overprivilege",
		Pattern:       `role_definition_name\s*=\s*"(Owner|Contributor)"`,
		Vulnerability: "Broad built-in role assignment",
		Severity:      types.SeverityHigh,
		Description:   "Principals assigned Owner or Contributor",
		Impact:        "Privilege escalation",
		Remediation:   "Assign narrowly scoped built-in or custom roles",
	},
	{
		ID:            "AZ-005",
		Category:      "Hardcoded Credentials",
		Pattern:       `(admin_password|client_secret)\s*=\s*"[^"]{8,}"`,
		Vulnerability: "Plaintext secret in configuration",
		Severity:      types.SeverityCritical,
		Description:   "Passwords or client secrets committed to Terraform source",
		Impact:        "Credential theft",
		Remediation:   "Reference secrets from Azure Key Vault",
	},
}

var builtinTables = map[string][]types.SecurityPattern{
	ProviderGCP:   gcpPatterns,
	ProviderAWS:   awsPatterns,
	ProviderAzure: azurePatterns,
}
