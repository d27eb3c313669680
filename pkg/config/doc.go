/*
Package config loads the realmkeep configuration.

Resolution order: a services.yaml bundle in the configuration directory
wins; without one, each section is read from its own JSON file. A handful
of environment variables (KEYCLOAK_*, BACKUP_RESTORE_*) override whatever
the files say, which keeps secrets out of checked-in config.
*/
package config
