package catalog

// Introspection statements against the Oracle data dictionary. ALL_*
// views are used so the cleaner works with the privileges of the
// executing user rather than requiring DBA views everywhere; the few
// DBA_* queries degrade gracefully when unreadable.

const sqlListObjects = `
select ao.object_type,
       ao.owner,
       ao.object_name
from all_objects ao
where ao.owner = :1
and ao.object_type in (
        'TABLE', 'VIEW', 'MATERIALIZED VIEW', 'SEQUENCE', 'SYNONYM',
        'PROCEDURE', 'FUNCTION', 'PACKAGE', 'TYPE', 'TRIGGER', 'INDEX',
        'JOB', 'CHAIN', 'PROGRAM'
    )
and ao.secondary = 'N'
and ao.object_name not like 'BIN$%'
and not (
        ao.object_type = 'SEQUENCE'
        and exists (
            select 1
            from all_tab_identity_cols atic
            where atic.owner = ao.owner
            and atic.sequence_name = ao.object_name
        )
    )
and not (
        ao.object_type = 'TABLE'
        and exists (
            select 1
            from all_mviews am
            where am.owner = ao.owner
            and am.mview_name = ao.object_name
        )
    )
and not (
        ao.object_type = 'INDEX'
        and exists (
            select 1
            from all_constraints ac
            where ac.owner = ao.owner
            and ac.constraint_name = ao.object_name
            and ac.constraint_type in ('P', 'U')
        )
    )
order by ao.object_name`

const sqlListRefConstraints = `
select constraint_name,
       owner,
       table_name
from all_constraints
where constraint_type = 'R'
and owner = :1`

const sqlListLegacyJobs = `
select job
from all_jobs
where log_user = :1 or schema_user = :2`

const sqlListCredentials = `
select owner,
       credential_name
from all_credentials
where owner = :1`

const sqlObjectCount = `
select count(*)
from all_objects
where owner = :1`

const sqlMaintainedSchemas = `
select username
from dba_users
where oracle_maintained = 'Y'`

const sqlNonUppercaseSchemas = `
select username
from dba_users
where upper(username) != username`

const sqlSchemaTablespaces = `
select distinct tablespace_name
from dba_segments
where owner = :1`

const sqlValidateSchema = `select dbms_assert.schema_name(:1) from dual`

const sqlSessionCount = `
select count(*)
from v$session
where (client_info <> :1 or client_info is null)
and schemaname = :2`

const sqlPurgeUserRecycleBin = `purge recyclebin`

const sqlSetDDLLockTimeout = `alter session set ddl_lock_timeout=30`

const sqlSetClientInfo = `begin dbms_application_info.set_client_info(:1); end;`
