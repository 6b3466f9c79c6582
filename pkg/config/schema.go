package config

// Schema is the JSON schema for validating configuration files
const Schema = `{
    "$schema": "http://json-schema.org/draft-07/schema#",
    "type": "object",
    "properties": {
        "site_dir": {
            "type": "string",
            "description": "Directory of static site assets under management"
        },
        "remote_prefix": {
            "type": "string",
            "pattern": "^[^/].*$"
        },
        "state_dir": {
            "type": "string"
        },
        "max_concurrent_transfers": {
            "type": "integer",
            "minimum": 1
        },
        "stale_after_hours": {
            "type": "integer",
            "minimum": 1
        },
        "log_level": {
            "type": "string",
            "enum": ["debug", "info", "warn", "error"]
        },
        "log_format": {
            "type": "string",
            "enum": ["json", "console"]
        },
        "log_file": {
            "type": "string"
        },
        "storage": {
            "type": "object",
            "properties": {
                "destinations": {
                    "type": "array",
                    "minItems": 1,
                    "items": {
                        "type": "object",
                        "properties": {
                            "name": {
                                "type": "string",
                                "pattern": "^[a-zA-Z0-9_-]+$"
                            },
                            "type": {
                                "type": "string",
                                "enum": ["local", "s3", "backblaze", "ssh"]
                            },
                            "enabled": {
                                "type": "boolean"
                            },
                            "base_dir": {
                                "type": "string"
                            },
                            "options": {
                                "type": "object"
                            }
                        },
                        "required": ["name", "type"]
                    }
                }
            },
            "required": ["destinations"]
        },
        "publish": {
            "type": "object",
            "properties": {
                "remote": {
                    "type": "string"
                },
                "branch": {
                    "type": "string"
                },
                "workdir": {
                    "type": "string"
                }
            },
            "required": ["remote", "branch"]
        }
    },
    "required": ["site_dir", "storage"]
}`
